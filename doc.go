/*
Package netcore implements the firmware-resident DNS resolver and HTTP/HTTPS
client core used by a platform's pre-OS network stack. It resolves host
names to IPv4 and IPv6 addresses via the dns subpackage, performs GET/HEAD
exchanges over plain TCP or TLS via the httpcore subpackage, and drives TLS
record framing and handshakes via the tlspump subpackage.

The core is built around three cooperating subsystems:

DNS query engine

dns.Service owns the shared, TTL-aged host-to-address cache and the set of
known DNS servers for one address family. dns.Instance is a configured
resolver session; callers drive lookups asynchronously through dns.Token.

HTTP state machine

httpcore.Service/Instance/Token mirror the DNS triplet, pipelining at most
one in-flight request per connection and preserving spillover bytes between
responses on a persistent connection.

TLS pump

tlspump.ConnectSession drives an external TLS engine (defined, not
implemented, by tlspump.Engine) through handshake, TlsTransmit/TlsReceive
wrap/unwrap TLS records over the same TCP transport the HTTP layer uses,
and tlspump.Conn packages both behind a transport.StreamConn.

None of these subsystems assume an OS scheduler: every blocking operation
is a busy poll of the underlying transport's Poll method, optionally guarded
by a timeout, matching the cooperative single-threaded runtime this core is
embedded in.
*/
package netcore
