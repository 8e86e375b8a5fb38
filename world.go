package netcore

// AddressFamily distinguishes IPv4 from IPv6 resolver/service instances
// per spec §3.1.
type AddressFamily int

const (
	FamilyV4 AddressFamily = iota
	FamilyV6
)

func (f AddressFamily) String() string {
	if f == FamilyV6 {
		return "v6"
	}
	return "v4"
}

// DnsWorld is the explicitly constructed, explicitly torn down container
// for the process-wide shared DNS cache, kept separately per address
// family. A driver constructs exactly one DnsWorld at startup and passes
// it to every dns.Service it creates; there is no package-level static
// standing in for it. The DNS server-address set is not held here: each
// dns.Service keeps its own, shared by that Service's instances only.
//
// DnsWorld itself holds no DNS-specific types to avoid an import cycle
// with the dns subpackage; it is a pair of opaque per-family slots that
// dns.Service type-asserts into its CacheBackend on first use.
type DnsWorld struct {
	slots [2]interface{}
}

// NewDnsWorld returns a freshly constructed, empty world.
func NewDnsWorld() *DnsWorld {
	return &DnsWorld{}
}

// Slot returns the storage slot for one address family, creating it with
// init if it does not yet exist.
func (w *DnsWorld) Slot(family AddressFamily, init func() interface{}) interface{} {
	if w.slots[family] == nil {
		w.slots[family] = init()
	}
	return w.slots[family]
}

// Reset tears down a world, releasing both per-family slots. Intended to
// be called at driver unload, mirroring the explicit construct/destroy
// spec §9 asks for instead of reaching through a static.
func (w *DnsWorld) Reset() {
	w.slots[FamilyV4] = nil
	w.slots[FamilyV6] = nil
}
