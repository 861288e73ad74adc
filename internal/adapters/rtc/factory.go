package rtc

import (
	"time"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// CodecRegistrar fills a media engine with the codecs a media source emits.
type CodecRegistrar interface {
	RegisterCodecs(*webrtc.MediaEngine) error
}

type DefaultCodecs struct{}

func (DefaultCodecs) RegisterCodecs(me *webrtc.MediaEngine) error {
	return me.RegisterDefaultCodecs()
}

type FactoryOptions struct {
	ICEServers []string
	// Trickle returns descriptions immediately and reports candidates
	// through OnCandidate instead of waiting for gathering to finish.
	Trickle bool
	Codecs  CodecRegistrar
}

// PeerFactory builds pion peer connections sharing one API instance.
type PeerFactory struct {
	api     *webrtc.API
	cfg     webrtc.Configuration
	trickle bool
}

func NewPeerFactory(o FactoryOptions) (*PeerFactory, error) {
	if o.Codecs == nil {
		o.Codecs = DefaultCodecs{}
	}
	me := &webrtc.MediaEngine{}
	if err := o.Codecs.RegisterCodecs(me); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, err
	}

	// Ride out short NAT rebinding instead of failing after the 5s default.
	se := webrtc.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)
	return &PeerFactory{api: api, cfg: Configuration(o.ICEServers), trickle: o.Trickle}, nil
}

// Configuration turns STUN/TURN urls into a peer connection config.
func Configuration(urls []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(urls) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: urls}}
	}
	return cfg
}

func (f *PeerFactory) NewPeer(role call.Role) (call.Peer, error) {
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	return newConnection(pc, role, f.trickle), nil
}
