package dns

import mdns "github.com/miekg/dns"

// qName returns the query name of the single question in msg, or "" if
// there is none. Grounded on routedns's message.go qName helper.
func qName(msg *mdns.Msg) string {
	if len(msg.Question) == 0 {
		return ""
	}
	return msg.Question[0].Name
}

func fqdn(name string) string {
	return mdns.Fqdn(name)
}
