package model

// IngestEnvelope carries one raw bus line tagged with the transport it came
// from ("tcp", "stdin"). Processors turn envelopes into LogRecords.
//
// Stream identifies the connection a line arrived on so multi-line state is
// never shared between publishers. End marks the close of that stream and
// carries no line.
type IngestEnvelope struct {
	Source string
	Stream string
	Line   string
	End    bool
}
