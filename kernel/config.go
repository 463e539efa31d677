package kernel

// Config bounds the fixed-size pools every subsystem allocates from. The
// teacher takes options as plain struct fields / functional options
// (nodefs.Options) rather than a config-file format, and this module
// follows suit: there is no external config parser here, only literal
// pool-size constants matching the spec.
type Config struct {
	MaxTasks        int
	MaxDescriptors  int
	MaxENFInstances int
	MaxInodes       int
	MaxBlocks       int
	HeapBytes       int
}

// DefaultConfig returns the spec's literal pool sizes: 64 descriptors, 16
// ENF instances, 256 inodes, 1024 blocks, a 1 MiB heap, and room for 64
// tasks.
func DefaultConfig() Config {
	return Config{
		MaxTasks:        64,
		MaxDescriptors:  64,
		MaxENFInstances: 16,
		MaxInodes:       256,
		MaxBlocks:       1024,
		HeapBytes:       1 << 20,
	}
}

// Option mutates a Config during construction, matching the teacher's
// functional-options pattern (nodefs.Options is built the same way,
// through a slice of option-like mutators).
type Option func(*Config)

// WithMaxTasks overrides the task table size.
func WithMaxTasks(n int) Option { return func(c *Config) { c.MaxTasks = n } }

// WithHeapBytes overrides the heap arena size.
func WithHeapBytes(n int) Option { return func(c *Config) { c.HeapBytes = n } }

// WithMaxDescriptors overrides the descriptor table size.
func WithMaxDescriptors(n int) Option { return func(c *Config) { c.MaxDescriptors = n } }

// WithMaxENFInstances overrides the ENF instance pool size.
func WithMaxENFInstances(n int) Option { return func(c *Config) { c.MaxENFInstances = n } }

// WithMaxInodes overrides the inode table size.
func WithMaxInodes(n int) Option { return func(c *Config) { c.MaxInodes = n } }

// WithMaxBlocks overrides the block arena size.
func WithMaxBlocks(n int) Option { return func(c *Config) { c.MaxBlocks = n } }

// NewConfig returns DefaultConfig with opts applied in order.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
