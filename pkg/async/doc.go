// Package async runs calls in the background and hands back a Future for
// their result.
//
// Cross-context messages in torrentbridge are asynchronous: the sender gets a
// Future and decides whether to wait on it.
//
//	f := async.Async(ctx, msg, router.Handle)
//	reply, err := f.AwaitContext(ctx)
//
// Resolved builds a completed Future, which is handy for replies that are
// known without doing any work.
package async
