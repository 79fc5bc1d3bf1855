package bridge

import (
	"github.com/mfduar8766/browserautomation/internal/domain/argscodec"
)

// Surface is everything the isolated context can reach on the host.
type Surface interface {
	// Args returns the configuration snapshot taken when the context was created.
	Args() argscodec.ConfigMap
	// Log forwards a message to the host log router. Non-string messages are
	// stringified before sending.
	Log(level string, message interface{})
	// RequestDevTools asks the host to open a developer-tools panel.
	RequestDevTools()
}

type surface struct {
	args      argscodec.ConfigMap
	transport *Transport
}

// Open builds the Surface for a new isolated context. The serialized args are
// decoded once here; if decoding fails the snapshot is empty and the
// ProtocolDecodeError is reported on the error channel instead.
func Open(serializedArgs string, transport *Transport) Surface {
	s := &surface{transport: transport}

	args, err := argscodec.Deserialize(serializedArgs)
	if err != nil {
		s.Log("error", newDecodeError("args", serializedArgs, err).Error())
		return s
	}
	s.args = args
	return s
}

func (s *surface) Args() argscodec.ConfigMap {
	return s.args
}

func (s *surface) Log(level string, message interface{}) {
	s.send(Envelope{Channel: ChannelLog, Level: level, Message: Stringify(message)})
}

func (s *surface) RequestDevTools() {
	s.send(Envelope{Channel: ChannelDevTools})
}

// send is fire-and-forget: encode and transport errors are dropped because the
// caller has no channel to receive them.
func (s *surface) send(env Envelope) {
	data, err := Encode(env)
	if err != nil {
		return
	}
	_ = s.transport.Send(data)
}
