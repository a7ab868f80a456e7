package engine

import (
	"log"

	"NetWarden/internal/model"
	"NetWarden/internal/queue"
	"NetWarden/pkg/capture"
)

// runOutput drains the forward queue into the output capture file. It
// keeps draining after shutdown until the queue is empty, so no accepted
// packet is lost to teardown.
func runOutput(out *queue.Queue[*model.PacketJob], w *capture.Writer, quiet bool) {
	written := uint64(0)
	for {
		job, ok := out.PopTimeout(popTimeout)
		if !ok {
			if out.IsShutdown() && out.Len() == 0 {
				if !quiet {
					log.Printf("[output] stopped after %d packets", written)
				}
				return
			}
			continue
		}

		if err := w.WritePacket(job.TsSec, job.TsUsec, job.Data); err != nil {
			log.Printf("[output] write failed: %v", err)
			continue
		}
		written++
	}
}
