//go:build !linux

package cycle

// setAffinity is a no-op outside Linux; development builds on other
// platforms run unpinned.
func setAffinity(core int) error {
	return nil
}
