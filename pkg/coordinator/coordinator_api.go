package coordinator

import (
	"net/http"
	"net/rpc"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"txmesh/pkg/client"
)

// RPC surface, registered as service "Coordinator".

func (c *Coordinator) Commit(args *client.CommitArgs, reply *client.CommitResult) error {
	status, detail, err := c.commit(args.TxID, args.Ops, args.Durable)
	if err != nil {
		return err
	}
	reply.Status = status
	reply.Detail = detail
	return nil
}

func (c *Coordinator) Read(args *client.ReadArgs, reply *client.ReadResult) error {
	value, found, err := c.read(args.Key)
	if err != nil {
		return err
	}
	reply.Value = value
	reply.Found = found
	return nil
}

func (c *Coordinator) Status(args *client.StatusArgs, reply *client.StatusResult) error {
	reply.State = c.state(args.TxID)
	return nil
}

func (c *Coordinator) Ping(args *client.PingArgs, reply *client.PingResult) error {
	reply.Value = args.Key
	return nil
}

// Serve runs recovery and then serves the RPC API on addr, blocking until
// the listener fails. When metricsAddr is non-empty a prometheus endpoint
// is served there as well.
func (c *Coordinator) Serve(addr, metricsAddr string, gatherer prometheus.Gatherer) error {
	if err := c.Recover(); err != nil {
		return err
	}
	server := rpc.NewServer()
	if err := server.RegisterName("Coordinator", c); err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)

	if metricsAddr != "" && gatherer != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
				c.log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	c.log.Info().Str("addr", addr).Msg("coordinator listening")
	return http.ListenAndServe(addr, mux)
}
