package moore

// Version is the library release.
const Version = "0.3.0"
