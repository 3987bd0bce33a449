package breakpoint

// Common viewport breakpoints, in pixels (or columns for terminal hosts).
const (
	W0    = 0    // base
	W240  = 240  // very small mobile
	W320  = 320  // small mobile
	W480  = 480  // mobile landscape
	W640  = 640  // small tablet
	W768  = 768  // tablet
	W991  = 991  // small desktop
	W1024 = 1024 // desktop
	W1200 = 1200 // large desktop
	W1280 = 1280 // HD desktop
	W1728 = 1728 // large HD
	W1920 = 1920 // full HD
	W1980 = 1980 // large full HD
	W3840 = 3840 // 4K UHD
	W4096 = 4096 // maximum named breakpoint
)

// Defaults returns the named breakpoints in ascending order.
func Defaults() []int {
	return []int{W0, W240, W320, W480, W640, W768, W991, W1024, W1200, W1280, W1728, W1920, W1980, W3840, W4096}
}
