package simbus

import "github.com/fiberpos/tendo-go/pkg/slcan"

// ReplyTo builds the reply a positioner sends for req.
func ReplyTo(req slcan.Frame, code uint8, payload []byte) slcan.Frame {
	return slcan.Frame{
		Address: req.Address,
		Command: req.Command,
		UID:     req.UID,
		Code:    code,
		Payload: payload,
	}
}

// Accept answers every request with code 0 and payload.
func Accept(payload []byte) Responder {
	return func(req slcan.Frame) []slcan.Frame {
		return []slcan.Frame{ReplyTo(req, 0, payload)}
	}
}

// Reject answers every request with code.
func Reject(code uint8) Responder {
	return func(req slcan.Frame) []slcan.Frame {
		return []slcan.Frame{ReplyTo(req, code, nil)}
	}
}

// Silent never answers.
func Silent() Responder {
	return func(slcan.Frame) []slcan.Frame { return nil }
}

// Sequence answers the n-th request with the n-th responder; the last one
// repeats once the sequence is exhausted.
func Sequence(rs ...Responder) Responder {
	i := 0
	return func(req slcan.Frame) []slcan.Frame {
		r := rs[min(i, len(rs)-1)]
		i++
		return r(req)
	}
}

// Devices answers a broadcast request once per address, each with code 0
// and the payload returned by payload. Targeted requests are answered only
// by a listed address.
func Devices(payload func(addr uint16) []byte, addrs ...uint16) Responder {
	return func(req slcan.Frame) []slcan.Frame {
		var out []slcan.Frame
		for _, a := range addrs {
			if req.Address != slcan.BroadcastAddress && req.Address != a {
				continue
			}
			rep := ReplyTo(req, 0, payload(a))
			rep.Address = a
			out = append(out, rep)
		}
		return out
	}
}
