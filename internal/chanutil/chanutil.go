// Package chanutil holds small generic helpers for the channel-closing
// dance that shows up whenever multiple goroutines race to tear down the
// same pipe stage or RPC connection.
package chanutil

// Close closes ch if it is non-nil, recovering if it is already closed.
// Reports whether this call was the one that closed it.
func Close[T any](ch chan T) (ok bool) {
	if ch == nil {
		return
	}
	defer func() {
		if !ok {
			recover()
		}
	}()
	close(ch)
	return true
}

// Send sends v on ch if ch is non-nil, recovering if ch is closed.
// Reports whether the value was delivered.
func Send[T any](ch chan T, v T) (ok bool) {
	if ch == nil {
		return
	}
	defer func() {
		if !ok {
			recover()
		}
	}()
	ch <- v
	return true
}
