package graph

import (
	"fmt"

	"github.com/leftmike/graft/wal"
)

// Replay applies a write-ahead log to a graph, one read-write transaction
// per logged epoch, in epoch order. Replayed transactions receive fresh
// commit epochs; the resulting visible state matches the state the log
// was recorded from.
func Replay(st wal.Store, g *Graph) error {
	return st.Scan(
		func(epoch int64, buf []byte) error {
			records, err := wal.Decode(buf)
			if err != nil {
				return fmt.Errorf("graph: replay epoch %d: %s", epoch, err)
			}
			if len(records) == 0 {
				return nil
			}

			tx := g.BeginTransaction()
			for _, rec := range records {
				err = applyRecord(g, tx, rec)
				if err != nil {
					tx.Abort()
					return fmt.Errorf("graph: replay epoch %d: %s: %s", epoch,
						rec.Op, err)
				}
			}
			_, err = tx.Commit(true)
			return err
		})
}

func applyRecord(g *Graph, tx *Transaction, rec wal.Record) error {
	switch rec.Op {
	case wal.OpNewVertex:
		g.ensureVertexID(VertexID(rec.Src))
	case wal.OpPutVertex:
		return tx.PutVertex(VertexID(rec.Src), rec.Data)
	case wal.OpDelVertex:
		_, err := tx.DelVertex(VertexID(rec.Src), rec.Recycle)
		return err
	case wal.OpPutEdge:
		return tx.PutEdge(VertexID(rec.Src), Label(rec.Label), VertexID(rec.Dst),
			rec.Data, rec.ForceInsert)
	case wal.OpPutEdgeVersion:
		return tx.PutEdgeWithVersion(VertexID(rec.Src), Label(rec.Label),
			VertexID(rec.Dst), rec.Data, Timestamp(rec.Version), rec.ForceInsert)
	case wal.OpDelEdge:
		_, err := tx.DelEdge(VertexID(rec.Src), Label(rec.Label), VertexID(rec.Dst))
		return err
	default:
		return fmt.Errorf("unknown op type: %d", byte(rec.Op))
	}
	return nil
}
