package replica

import (
	"net/http"
	"net/rpc"

	"txmesh/pkg/client"
	"txmesh/pkg/common"
)

// RPC surface, registered as service "Replica". Argument and reply shapes
// live in pkg/client so both ends share them.

func (r *Replica) Prepare(args *client.PrepareArgs, reply *client.ReplicaActionResult) error {
	conflict, err := r.prepare(args.TxID, args.Ops)
	if err != nil {
		return err
	}
	reply.Conflict = conflict
	reply.Success = !conflict
	return nil
}

func (r *Replica) Commit(args *client.CommitTxArgs, reply *client.ReplicaActionResult) error {
	if err := r.commit(args.TxID); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (r *Replica) Abort(args *client.AbortArgs, reply *client.ReplicaActionResult) error {
	if err := r.abort(args.TxID); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (r *Replica) Read(args *client.ReplicaKeyArgs, reply *client.ReplicaGetResult) error {
	value, found, err := r.read(args.Key)
	if err != nil {
		return err
	}
	reply.Value = value
	reply.Found = found
	return nil
}

func (r *Replica) Ping(args *client.ReplicaKeyArgs, reply *client.ReplicaGetResult) error {
	reply.Value = args.Key
	reply.Found = true
	return nil
}

func (r *Replica) CreateSchema(args *client.SchemaArgs, reply *client.SchemaResult) error {
	if err := r.createSchema(); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

func (r *Replica) DeleteSchema(args *client.SchemaArgs, reply *client.SchemaResult) error {
	if err := r.deleteSchema(); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

func (r *Replica) SetStorageMode(args *client.SetModeArgs, reply *client.SchemaResult) error {
	mode, ok := common.ParseStorageMode(args.Mode)
	if !ok {
		return ErrUnknownMode
	}
	if err := r.setStorageMode(mode); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

func (r *Replica) SchemaInfo(args *client.SchemaInfoArgs, reply *client.SchemaInfoResult) error {
	mode, keys, err := r.schemaInfo(args.Table)
	if err != nil {
		return err
	}
	reply.Node = r.name
	reply.Mode = mode
	reply.KeyCount = len(keys)
	reply.Keys = keys
	return nil
}

// Serve runs recovery and then serves the RPC API on addr. It blocks until
// the listener fails.
func (r *Replica) Serve(addr string) error {
	if err := r.Recover(); err != nil {
		return err
	}
	server := rpc.NewServer()
	if err := server.RegisterName("Replica", r); err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	r.log.Info().Str("addr", addr).Msg("replica listening")
	return http.ListenAndServe(addr, mux)
}
