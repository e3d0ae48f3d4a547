package integrations

// Packer turns a staged folder of page images into one archive file.
type Packer interface {
	// Ext is the archive extension including the dot.
	Ext() string
	// Pack writes the archive for srcDir to dst. title names the archive
	// inside its metadata where the format has any.
	Pack(srcDir, dst, title string) error
}
