package tldk

import (
	"encoding/json"
	"time"
)

// Info is the externally visible snapshot of one stream's state, returned
// by GetState. Its shape mirrors what a kernel TCP_INFO sockopt would
// report, but every field here is computed from this stack's own control
// blocks rather than read out of an OS socket.
type Info struct {
	LocalAddr    string        `json:"localAddr"`
	RemoteAddr   string        `json:"remoteAddr"`
	State        string        `json:"state"`
	SenderMSS    uint16        `json:"sendMSS"`
	ReceiverMSS  uint16        `json:"recvMSS"`
	RTT          time.Duration `json:"rtt"`
	RTTVar       time.Duration `json:"rttVar"`
	RTO          time.Duration `json:"rto"`
	SendUna      uint32        `json:"sendUna"`
	SendNxt      uint32        `json:"sendNxt"`
	RecvNxt      uint32        `json:"recvNxt"`
	SendWindow   uint32        `json:"sendWindow"`
	RecvWindow   uint32        `json:"recvWindow"`
	CongestionWindow uint32    `json:"cwnd"`
	SlowStartThreshold uint32  `json:"ssthresh"`
	InFlight     int           `json:"inFlight"`
	OOOSegments  int           `json:"oooSegments"`
	RetxCount    int           `json:"retxCount"`
	LastError    error         `json:"-"`
}

// MarshalJSON renders Info with RTT-family fields as human-readable
// durations rather than raw nanosecond integers, matching the stringified
// style this stack's ecosystem favors for operator-facing JSON.
func (i *Info) MarshalJSON() ([]byte, error) {
	type alias Info
	return json.Marshal(&struct {
		RTT    string `json:"rtt"`
		RTTVar string `json:"rttVar"`
		RTO    string `json:"rto"`
		*alias
	}{
		RTT:    i.RTT.String(),
		RTTVar: i.RTTVar.String(),
		RTO:    i.RTO.String(),
		alias:  (*alias)(i),
	})
}

// snapshotInfo builds an Info from a Stream's live control blocks.
func snapshotInfo(s *Stream) Info {
	info := Info{
		LocalAddr:   s.four.Local.String(),
		RemoteAddr:  s.four.Remote.String(),
		State:       s.phase.String(),
		SenderMSS:   s.opt.mss,
		ReceiverMSS: s.opt.peerMSS,
		RTO:         s.rtt.getRTO(),
		SendUna:     uint32(s.snd.una),
		SendNxt:     uint32(s.snd.nxt),
		RecvNxt:     uint32(s.rcv.nxt),
		SendWindow:  uint32(s.snd.wnd),
		RecvWindow:  uint32(s.advertisedWindow()),
		InFlight:    s.sendBuf.inFlight(),
		OOOSegments: s.oooBuf.len(),
		RetxCount:   s.retxCount,
		LastError:   s.lastErr,
	}
	info.RTT = s.rtt.srtt
	info.RTTVar = s.rtt.rttVar
	if s.cc != nil {
		info.CongestionWindow = s.cc.getCwnd()
		info.SlowStartThreshold = s.cc.ssthresh
	}
	return info
}
