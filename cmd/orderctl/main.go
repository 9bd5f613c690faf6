// Command orderctl inspects and moves orders through the admin gRPC service.
//
//	orderctl get <order-id>
//	orderctl status [-note text] [-by actor] <order-id> <STATUS>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/discovery"
	grpcsrv "github.com/example/flowershop/pkg/grpc"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n  orderctl [flags] get <order-id>\n  orderctl [flags] status [-note text] [-by actor] <order-id> <STATUS>\n\nflags:\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	addr := flag.String("addr", "", "order admin address; skips discovery")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fatalf("create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := *addr
	if target == "" {
		target = resolve(ctx, cfg, logger)
	}

	client, err := grpcsrv.Dial(target)
	if err != nil {
		fatalf("dial %s: %v", target, err)
	}
	defer client.Close()

	var reply *structpb.Struct
	switch cmd := flag.Arg(0); cmd {
	case "get":
		if flag.NArg() != 2 {
			usage()
			os.Exit(2)
		}
		reply, err = client.GetOrder(ctx, flag.Arg(1))

	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		note := fs.String("note", "", "history note")
		by := fs.String("by", "", "actor recorded in history")
		fs.Parse(flag.Args()[1:])
		if fs.NArg() != 2 {
			usage()
			os.Exit(2)
		}
		reply, err = client.UpdateStatus(ctx, fs.Arg(0), fs.Arg(1), *by, *note)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		st := status.Convert(err)
		fatalf("%s: %s", st.Code(), st.Message())
	}

	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(reply)
	if err != nil {
		fatalf("encode reply: %v", err)
	}
	fmt.Println(string(out))
}

// resolve looks the service up in etcd and falls back to the configured gRPC address.
func resolve(ctx context.Context, cfg *config.Config, logger *zap.Logger) string {
	fallback := cfg.GRPC.Addr()
	if !cfg.Etcd.Enabled() {
		return fallback
	}

	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger)
	if err != nil {
		logger.Warn("Failed to connect to etcd", zap.Error(err))
		return fallback
	}
	defer sd.Close()

	return grpcsrv.ResolveTarget(ctx, sd, grpcsrv.ServiceName, fallback, logger)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "orderctl: "+format+"\n", args...)
	os.Exit(1)
}
