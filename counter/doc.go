// Package counter provides distributed atomic counters stored in DynamoDB.
//
// Each counter is one item: a string hash key holding the counter ID and a
// numeric attribute holding the last value handed out. Increment issues a
// single conditionless UpdateItem with an ADD expression, so any number of
// processes can increment the same counter concurrently and every caller
// receives a distinct value. No client-side locking is involved.
//
// # Usage
//
//	c := counter.New(nil, counter.DefaultConfig()) // client created on first use
//
//	id, err := c.Add(ctx, "Users")                 // 1, 2, 3, ...
//	last, err := c.Get(ctx, "Users")               // 0 until first increment
//
// # Results
//
// Increment and GetLastValue return a [Result] immediately. Observers may be
// attached before or after the operation completes; late observers run
// synchronously:
//
//	c.Increment(ctx, "Orders", counter.WithAmount(5)).
//	    OnSuccess(func(v int64) { ... }).
//	    OnFailure(func(err error) { ... })
//
// The [OnSuccess], [OnError] and [OnComplete] options attach the same
// observers at call time.
//
// # Table layout
//
// Use [DefaultConfig] for the "AtomicCounters" table keyed by "id" with the
// value in "lastValue". [CreateTable] provisions a matching table.
//
// # Errors
//
//   - [*StoreError] - the DynamoDB call failed; unwraps to the SDK error
//   - [ErrMalformedResponse] - the count attribute is missing or not an integer
//   - [ErrValueOutOfRange] - the count no longer fits in an int64 (wraps ErrMalformedResponse)
//   - [ErrEmptyCounterID] - no counter ID was given
//   - [ErrProtectedOverride] - a request override changed the counter operation
package counter
