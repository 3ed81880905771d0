package utils

// Retry runs fn up to attempts times, retrying only while shouldRetry
// reports the returned error as transient. Any other error, or success,
// stops immediately. After the attempt budget is exhausted the last error
// is returned unchanged so callers can surface it as a conflict.
//
// This is the bounded-retry discipline around allocate-and-insert: a
// duplicate-key race is retried a handful of times, every other failure
// aborts at once.
func Retry(attempts int, shouldRetry func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
	}
	return err
}
