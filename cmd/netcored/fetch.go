package main

import (
	"fmt"
	"time"

	"github.com/jtacoma/uritemplates"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/httpcore"
	"github.com/fwnet/netcore/transport"
)

// bootImageURLTemplate is the templated boot-image location a netboot
// client resolves against the variables the firmware knows about at the
// point it needs an image (version, CPU architecture), one level above
// a literal URL the way DHCP option 67 / PXE clients commonly hand
// back a template rather than a fully-resolved path.
const bootImageURLTemplate = "http://{host}/images/{version}/{arch}/boot.img"

// expandBootImageURL fills bootImageURLTemplate with the host this
// driver was told to fetch from and the version/arch pair requested on
// the command line.
func expandBootImageURL(host, version, arch string) (string, error) {
	tmpl, err := uritemplates.Parse(bootImageURLTemplate)
	if err != nil {
		return "", fmt.Errorf("parse boot-image URL template: %w", err)
	}
	expanded, err := tmpl.Expand(map[string]interface{}{
		"host":    host,
		"version": version,
		"arch":    arch,
	})
	if err != nil {
		return "", fmt.Errorf("expand boot-image URL template: %w", err)
	}
	return expanded, nil
}

// fetchResult is what runFetch reports back to main for printing.
type fetchResult struct {
	StatusCode int
	Status     httpcore.Status
	Reason     string
	Headers    []httpcore.HeaderField
	Body       []byte
}

// runFetch drives one GET or HEAD request to completion against inst: Request,
// busy-poll until the request is transmitted, then Response, busy-poll
// until headers and body are fully received. This is the same
// poll-until-done shape httpcore's own waitConnDone/waitDNSDone use
// internally, repeated here because the driver has no event loop of its
// own to hand the instance to.
func runFetch(inst *httpcore.Instance, method httpcore.Method, url string, timeout time.Duration) (*fetchResult, error) {
	reqTok := httpcore.NewToken(method, url)
	if cerr := inst.Request(reqTok); cerr != nil {
		return nil, fmt.Errorf("request: %w", cerr)
	}
	if !pollUntilDone(inst, reqTok.Event, timeout) {
		inst.Cancel(reqTok)
		return nil, fmt.Errorf("request timed out")
	}
	if reqTok.Status != netcore.KindOk {
		return nil, fmt.Errorf("request failed: %s", reqTok.Status)
	}

	respTok := httpcore.NewToken(method, url)
	body := make([]byte, 64*1024)
	respTok.Message.Body = body

	if cerr := inst.Response(respTok); cerr != nil {
		return nil, fmt.Errorf("response: %w", cerr)
	}
	if !pollUntilDone(inst, respTok.Event, timeout) {
		inst.Cancel(respTok)
		return nil, fmt.Errorf("response timed out")
	}
	if respTok.Status != netcore.KindOk {
		return nil, fmt.Errorf("response failed: %s", respTok.Status)
	}

	info := respTok.Message.Response
	if info == nil {
		return nil, fmt.Errorf("response completed with no status line")
	}
	return &fetchResult{
		StatusCode: info.StatusCode,
		Status:     info.Status,
		Reason:     info.Reason,
		Headers:    info.Headers,
		Body:       respTok.Message.Body[:respTok.Message.BodyLength],
	}, nil
}

// pollUntilDone busy-polls inst until event fires or timeout elapses
// (zero timeout waits forever), the same shape httpcore.waitConnDone
// uses internally for a transport.StreamConn.
func pollUntilDone(inst *httpcore.Instance, event <-chan struct{}, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		select {
		case <-event:
			return true
		case <-deadline:
			return false
		default:
		}
		inst.Poll()
		time.Sleep(transport.PollInterval)
	}
}
