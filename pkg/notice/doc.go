// Package notice classifies inbound push frames and routes them through an
// ordered pipeline of processors.
//
// A push frame is decoded into a Notice whose Kind is taken from the frame's
// command. The Pipeline hands the notice to every registered Processor that
// accepts its kind, in registration order, until one of them consumes it:
//
//	p := notice.NewPipeline(nil)
//	p.Register(notice.NewDedupProcessor(watermarks))
//	p.Register(notice.NewMessageProcessor())
//	res, err := p.Process(ctx, "alice", n, false)
//
// Batches such as a friend group change may be consumed item by item, so
// one processor can take some items and leave the rest to later ones.
//
// Processors never emit events directly. They collect them on the Context
// and the pipeline returns them once the whole pass is over, so no
// processor observes a half-applied change made earlier in the same pass.
// The Dispatcher glues this to a session: it implements
// network.PushHandler and broadcasts each pass's events to an EventSink.
package notice
