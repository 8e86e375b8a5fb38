package dns

import (
	"time"

	"github.com/fwnet/netcore"
)

// onTick implements spec §4.1 step 1 (per-token retry), driven once per
// second for every instance registered with its owning Service (spec
// §3.1's Service-level retransmission timer; see service.go's ageLoop).
// Grounded on routedns's cache-memory.go GC ticker, widened to also
// retransmit pending queries, and on
// original_source/NetworkPkg/DnsDxe/DnsImpl.c's DnsOnTimerRetransmit,
// which walks every instance from the Service's single timer.
func (inst *Instance) onTick() {
	for _, tok := range inst.tx.all() {
		tok.packetTTL -= time.Second
		if tok.packetTTL > 0 {
			continue
		}
		tok.retryCount++
		if tok.retryCount <= inst.cfg.retryCountOrDefault() {
			tok.packetTTL = inst.cfg.retryIntervalOrDefault()
			inst.metrics.Retries.Add(1)
			_ = inst.transmitPacket(tok)
			continue
		}
		inst.tx.remove(tok)
		inst.metrics.RecordOutcome(netcore.KindTimeout)
		tok.signal(netcore.KindTimeout)
		if inst.tx.len() == 0 {
			inst.udp.CancelRecv()
		}
	}
}
