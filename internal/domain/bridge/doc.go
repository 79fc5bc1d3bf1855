/*
Package bridge is the only channel between the isolated context and the host.

# Capability surface

Code in the isolated context receives a Surface and nothing else:

	Args() argscodec.ConfigMap   read-only snapshot, captured once
	Log(level, message)          fire-and-forget
	RequestDevTools()            fire-and-forget

Neither call returns a result or an error. A devtools failure is logged on the
host and never reported back.

# Wire format

Each call becomes one JSON envelope on a single ordered transport:

	{"channel":"log-to-main","level":"warn","message":"..."}
	{"channel":"open-dev-tools"}

Messages are always strings on the wire. Non-string payloads are encoded to
JSON before they are sent, so the bridge never carries structured objects.

# Host side

Host drains the transport in send order, dispatching on channel and then on
level. Payloads that fail to decode become a ProtocolDecodeError routed to the
host error sink; they never stop the loop.
*/
package bridge
