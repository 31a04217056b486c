// Command adminserver exposes a minimal gRPC admin surface (stats and
// health only, never the SQL protocol itself) over an already-open
// database directory.
//
// Grounded on tinySQL's cmd/server/main.go: a manual grpc.ServiceDesc
// registered without protobuf codegen, a package-level JSON codec, and
// flag-configured listen addresses, narrowed to this module's
// stats/health surface (spec.md §6: "the user-facing SQL protocol
// itself stays the out-of-scope text-framed listener").
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/xzxg001/miniob-sub000/internal/bpm"
	"github.com/xzxg001/miniob-sub000/internal/dbms"
)

var (
	flagDir        = flag.String("dir", "./data", "database directory to open")
	flagGRPC       = flag.String("grpc", ":9091", "gRPC listen address")
	flagCheckpoint = flag.String("checkpoint", "*/30 * * * * *", "checkpoint cron schedule (seconds field included)")
)

// jsonCodec mirrors tinySQL's package-level JSON codec so the manual
// ServiceDesc below can be invoked without a protobuf toolchain.
type jsonCodec struct{}

func (jsonCodec) Name() string                      { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// StatsRequest carries no fields; it exists so the handler/codec shape
// matches tinySQL's decode-then-dispatch pattern.
type StatsRequest struct{}

// StatsResponse reports the open database's table count and checkpoint
// health, the admin surface's entire job.
type StatsResponse struct {
	Database       string `json:"database"`
	TableCount     int    `json:"table_count"`
	LastCheckpoint string `json:"last_checkpoint_error,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	LastRecoveryID string `json:"last_recovery_id,omitempty"`
}

// HealthRequest carries no fields.
type HealthRequest struct{}

// HealthResponse is a trivial liveness signal.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// AdminServer is the gRPC service interface this binary implements,
// following tinySQL's TinySQLServer interface-plus-ServiceDesc idiom.
type AdminServer interface {
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
}

func registerAdminServer(s *grpc.Server, srv AdminServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "miniobsub.Admin",
		HandlerType: (*AdminServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Stats", Handler: _Admin_Stats_Handler},
			{MethodName: "Health", Handler: _Admin_Health_Handler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "adminserver",
	}, srv)
}

func _Admin_Stats_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/miniobsub.Admin/Stats"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(AdminServer).Stats(ctx, req.(*StatsRequest)) }
	return interceptor(ctx, in, info, handler)
}

func _Admin_Health_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/miniobsub.Admin/Health"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(AdminServer).Health(ctx, req.(*HealthRequest)) }
	return interceptor(ctx, in, info, handler)
}

type server struct {
	db        *dbms.Db
	env       *dbms.Env
	cp        *bpm.Checkpointer
	startedAt time.Time
}

func (s *server) Stats(ctx context.Context, _ *StatsRequest) (*StatsResponse, error) {
	resp := &StatsResponse{
		Database:      s.db.Name(),
		TableCount:    len(s.db.ListTables()),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if err := s.cp.LastError(); err != nil {
		resp.LastCheckpoint = err.Error()
	}
	if id := s.env.TrxMgr.LastRecoveryID(); id != (uuid.UUID{}) {
		resp.LastRecoveryID = id.String()
	}
	return resp, nil
}

func (s *server) Health(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{OK: true}, nil
}

func main() {
	flag.Parse()

	db, env, err := dbms.Open(dbms.Config{Dir: *flagDir})
	if err != nil {
		log.Fatalf("adminserver: open %s: %v", *flagDir, err)
	}
	defer env.Close(db)

	cp, err := bpm.NewCheckpointer(env.Pools, *flagCheckpoint)
	if err != nil {
		log.Fatalf("adminserver: checkpointer: %v", err)
	}
	cp.OnFlush(func(err error) {
		if err != nil {
			log.Printf("adminserver: checkpoint failed: %v", err)
		}
	})
	cp.Start()
	defer cp.Stop()

	encoding.RegisterCodec(jsonCodec{})

	srv := &server{db: db, env: env, cp: cp, startedAt: time.Now()}

	lis, err := net.Listen("tcp", *flagGRPC)
	if err != nil {
		log.Fatalf("adminserver: listen %s: %v", *flagGRPC, err)
	}
	gs := grpc.NewServer()
	registerAdminServer(gs, srv)
	log.Printf("adminserver: gRPC listening on %s (dir=%s)", *flagGRPC, *flagDir)
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("adminserver: serve: %v", err)
	}
}
