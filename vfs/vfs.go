// Package vfs is the B-tree-indexed inode/file store, ported from the
// source's inode.c/inode.h: a fixed inode table and a block arena, indexed
// by two order-5 B-trees (by inode number, by filename hash), direct-block
// file I/O, and djb2 filename hashing.
package vfs

import (
	"github.com/fru1t-labs/coreos/btree"
	"github.com/fru1t-labs/coreos/kernel"
)

const (
	MaxInodes      = 256
	MaxFilenameLen = 64
	DirectBlocks   = 10
	BlockSize      = 512
	MaxBlocks      = 1024
)

// InodeType distinguishes what an inode represents.
type InodeType uint32

const (
	TypeFree InodeType = iota
	TypeFile
	TypeDir
)

// Permission bits, matching PERM_READ/PERM_WRITE/PERM_EXEC.
const (
	PermRead  = 0x4
	PermWrite = 0x2
	PermExec  = 0x1
)

// Inode mirrors struct inode. IndirectBlock and DoubleIndirectBlock are
// kept as fields for layout parity but are never populated: file I/O only
// ever addresses the ten direct blocks, matching the source's own
// "only support direct blocks for now" comment in inode_read/inode_write.
type Inode struct {
	InodeNum    uint32
	Type        InodeType
	Size        uint32
	Permissions uint32
	LinkCount   uint32
	BlockCount  uint32

	Direct              [DirectBlocks]uint32
	IndirectBlock       uint32
	DoubleIndirectBlock uint32

	InUse bool
}

// nameEntry is one link in a name_tree collision chain: the hash of a
// filename can collide with a different filename's hash, so each B-tree
// slot under a hash holds every filename that has hashed there rather than
// a single inode pointer (resolves the Open Question on collision policy).
type nameEntry struct {
	name     string
	inodeNum uint32
}

// FileStore is the B-tree filesystem: an inode table, block arena, and two
// B-tree indexes, matching struct btree_filesystem. The inode table and
// block arena are sized at construction (MaxInodes/MaxBlocks by default,
// via New), not at compile time, so a kernel.Config can size them down or
// up per instance.
type FileStore struct {
	inodeTree btree.Tree[*Inode]
	nameTree  btree.Tree[[]nameEntry]

	inodes []Inode

	blockStorage []byte
	blockBitmap  bitmap
	inodeBitmap  bitmap

	totalInodes, freeInodes int
	totalBlocks, freeBlocks int

	log kernel.Logger
}

var defaultLog = kernel.NewLogger("vfs")

// New returns an initialized file store with maxInodes inodes and
// maxBlocks blocks, all free. Block 0 is reserved (it signals "no block"
// in direct_blocks[i] == 0) and is never handed out by AllocBlock.
func New(maxInodes, maxBlocks int, log kernel.Logger) *FileStore {
	if log == nil {
		log = defaultLog
	}

	fs := &FileStore{
		inodes:       make([]Inode, maxInodes),
		blockStorage: make([]byte, BlockSize*maxBlocks),
		blockBitmap:  newBitmap(maxBlocks),
		inodeBitmap:  newBitmap(maxInodes),
		totalInodes:  maxInodes,
		freeInodes:   maxInodes,
		totalBlocks:  maxBlocks,
		freeBlocks:   maxBlocks,
		log:          log,
	}
	for i := range fs.inodes {
		fs.inodes[i].InodeNum = uint32(i)
	}
	// Block 0 is reserved and never allocated.
	fs.blockBitmap.set(0)
	fs.freeBlocks--

	fs.log.Printf("vfs: filesystem initialized: %d inodes, %d blocks", maxInodes, maxBlocks)
	return fs
}

// hashString is the djb2 hash used to key the name tree, matching
// hash_string in inode.c.
func hashString(s string) uint32 {
	hash := uint32(5381)
	for i := 0; i < len(s); i++ {
		hash = hash*33 + uint32(s[i])
	}
	return hash
}

// AllocInode finds the first free inode slot, marks it in-use, and inserts
// it into the inode tree keyed by inode number. Fails with
// kernel.ErrCapacity if the inode table is full.
func (fs *FileStore) AllocInode(typ InodeType) (*Inode, error) {
	num := fs.inodeBitmap.findFree(fs.totalInodes)
	if num < 0 {
		fs.log.Printf("vfs: no free inodes")
		return nil, kernel.ErrCapacity
	}

	in := &fs.inodes[num]
	fs.inodeBitmap.set(num)

	in.InodeNum = uint32(num)
	in.Type = typ
	in.Size = 0
	in.Permissions = PermRead | PermWrite
	in.LinkCount = 1
	in.BlockCount = 0
	in.Direct = [DirectBlocks]uint32{}
	in.IndirectBlock = 0
	in.DoubleIndirectBlock = 0
	in.InUse = true

	if err := fs.inodeTree.Insert(in.InodeNum, in); err != nil {
		fs.inodeBitmap.clear(num)
		in.InUse = false
		return nil, err
	}
	fs.freeInodes--

	return in, nil
}

// FreeInode releases every direct block the inode holds, removes it from
// the inode tree, and clears its bitmap bit.
func (fs *FileStore) FreeInode(in *Inode) {
	if in == nil || !in.InUse {
		return
	}

	for i := 0; i < DirectBlocks; i++ {
		if in.Direct[i] != 0 {
			fs.FreeBlock(in.Direct[i])
		}
	}

	fs.inodeTree.Delete(in.InodeNum)
	fs.inodeBitmap.clear(int(in.InodeNum))

	in.InUse = false
	fs.freeInodes++
}

// GetInode looks up an inode by number via the inode tree.
func (fs *FileStore) GetInode(inodeNum uint32) (*Inode, error) {
	return fs.inodeTree.Search(inodeNum)
}

// AllocBlock finds the first free block (starting at 1, since 0 is
// reserved), zero-fills it, and marks it allocated. Returns 0 (an invalid
// block number) if none are free, matching the source's sentinel.
func (fs *FileStore) AllocBlock() uint32 {
	num := -1
	for i := 1; i < fs.totalBlocks; i++ {
		if !fs.blockBitmap.test(i) {
			num = i
			break
		}
	}
	if num < 0 {
		return 0
	}

	fs.blockBitmap.set(num)
	fs.freeBlocks--

	ptr := fs.blockPtr(uint32(num))
	for i := range ptr {
		ptr[i] = 0
	}

	return uint32(num)
}

// FreeBlock clears a block's bitmap bit. A no-op for block 0 or an
// out-of-range number.
func (fs *FileStore) FreeBlock(blockNum uint32) {
	if blockNum == 0 || blockNum >= uint32(fs.totalBlocks) {
		return
	}
	fs.blockBitmap.clear(int(blockNum))
	fs.freeBlocks++
}

// blockPtr slices the block arena at blockNum, or returns nil for block 0
// or an out-of-range number.
func (fs *FileStore) blockPtr(blockNum uint32) []byte {
	if blockNum == 0 || blockNum >= uint32(fs.totalBlocks) {
		return nil
	}
	off := blockNum * BlockSize
	return fs.blockStorage[off : off+BlockSize]
}

// BlockAllocated reports whether blockNum is currently allocated, exposed
// for invariant #6 (the block bitmap bit set iff some inode's direct[i]
// references that block).
func (fs *FileStore) BlockAllocated(blockNum uint32) bool {
	if blockNum >= uint32(fs.totalBlocks) {
		return false
	}
	return fs.blockBitmap.test(int(blockNum))
}

// Read copies up to len(buf) bytes from in's data starting at offset into
// buf, clamped to in's size, and returns the number of bytes copied. Only
// the ten direct blocks are addressable; a read extending past them stops
// early, matching inode_read's "only support direct blocks for now".
func (fs *FileStore) Read(in *Inode, offset uint32, buf []byte) int {
	if in == nil || offset >= in.Size {
		return 0
	}

	size := uint32(len(buf))
	if offset+size > in.Size {
		size = in.Size - offset
	}

	var read uint32
	for read < size {
		blockIdx := (offset + read) / BlockSize
		blockOff := (offset + read) % BlockSize
		want := BlockSize - blockOff
		if want > size-read {
			want = size - read
		}

		if blockIdx >= DirectBlocks {
			break
		}
		blockNum := in.Direct[blockIdx]
		if blockNum == 0 {
			break
		}
		ptr := fs.blockPtr(blockNum)
		if ptr == nil {
			break
		}

		copy(buf[read:read+want], ptr[blockOff:blockOff+want])
		read += want
	}

	return int(read)
}

// Write copies data into in's direct blocks starting at offset, allocating
// blocks as needed, and grows in.Size if the write extends past it.
// Returns the number of bytes written (short of len(data) if the direct
// blocks or the block pool are exhausted).
func (fs *FileStore) Write(in *Inode, offset uint32, data []byte) int {
	if in == nil {
		return 0
	}

	var written uint32
	size := uint32(len(data))
	for written < size {
		blockIdx := (offset + written) / BlockSize
		blockOff := (offset + written) % BlockSize
		want := BlockSize - blockOff
		if want > size-written {
			want = size - written
		}

		if blockIdx >= DirectBlocks {
			break
		}

		if in.Direct[blockIdx] == 0 {
			newBlock := fs.AllocBlock()
			if newBlock == 0 {
				break
			}
			in.Direct[blockIdx] = newBlock
			in.BlockCount++
		}

		ptr := fs.blockPtr(in.Direct[blockIdx])
		if ptr == nil {
			break
		}
		copy(ptr[blockOff:blockOff+want], data[written:written+want])
		written += want
	}

	if offset+written > in.Size {
		in.Size = offset + written
	}

	return int(written)
}

// Truncate shrinks in to newSize, freeing any direct blocks beyond the new
// block count. Growing is a no-op (matching inode_truncate, which only
// ever shrinks).
func (fs *FileStore) Truncate(in *Inode, newSize uint32) error {
	if in == nil {
		return kernel.ErrInvalidArgument
	}
	if newSize >= in.Size {
		return nil
	}

	newBlocks := (newSize + BlockSize - 1) / BlockSize
	for i := newBlocks; i < DirectBlocks; i++ {
		if in.Direct[i] != 0 {
			fs.FreeBlock(in.Direct[i])
			in.Direct[i] = 0
		}
	}

	in.Size = newSize
	in.BlockCount = newBlocks
	return nil
}

// lookupName resolves filename's collision chain and returns the inode
// number it maps to, or kernel.ErrNotFound if filename is not present
// (including the case where its hash collides only with other names).
func (fs *FileStore) lookupName(filename string) (uint32, error) {
	hash := hashString(filename)
	chain, err := fs.nameTree.Search(hash)
	if err != nil {
		return 0, kernel.ErrNotFound
	}
	for _, e := range chain {
		if e.name == filename {
			return e.inodeNum, nil
		}
	}
	return 0, kernel.ErrNotFound
}

// Create allocates an inode for filename and links it into the name tree.
// Fails with kernel.ErrInvalidArgument if filename is too long,
// kernel.ErrAlreadyPresent if filename already exists.
func (fs *FileStore) Create(filename string, typ InodeType) (*Inode, error) {
	if len(filename) >= MaxFilenameLen {
		fs.log.Printf("vfs: filename too long: %q", filename)
		return nil, kernel.ErrInvalidArgument
	}
	if _, err := fs.lookupName(filename); err == nil {
		fs.log.Printf("vfs: file already exists: %q", filename)
		return nil, kernel.ErrAlreadyPresent
	}

	in, err := fs.AllocInode(typ)
	if err != nil {
		return nil, err
	}

	hash := hashString(filename)
	chain, _ := fs.nameTree.Search(hash)
	chain = append(chain, nameEntry{name: filename, inodeNum: in.InodeNum})
	if len(chain) == 1 {
		fs.nameTree.Insert(hash, chain)
	} else {
		fs.nameTree.Delete(hash)
		fs.nameTree.Insert(hash, chain)
	}

	fs.log.Printf("vfs: created file %q with inode %d", filename, in.InodeNum)
	return in, nil
}

// Open resolves filename to its inode, matching btree_fs_open +
// inode_get.
func (fs *FileStore) Open(filename string) (*Inode, error) {
	num, err := fs.lookupName(filename)
	if err != nil {
		return nil, err
	}
	return fs.GetInode(num)
}

// ReadFile opens filename and reads up to len(buf) bytes from its start,
// matching btree_fs_read.
func (fs *FileStore) ReadFile(filename string, buf []byte) (int, error) {
	in, err := fs.Open(filename)
	if err != nil {
		fs.log.Printf("vfs: file not found: %q", filename)
		return 0, err
	}
	return fs.Read(in, 0, buf), nil
}

// WriteFile opens filename and writes data at its start, matching
// btree_fs_write.
func (fs *FileStore) WriteFile(filename string, data []byte) (int, error) {
	in, err := fs.Open(filename)
	if err != nil {
		fs.log.Printf("vfs: file not found: %q", filename)
		return 0, err
	}
	return fs.Write(in, 0, data), nil
}

// Delete unlinks filename from the name tree and frees its inode,
// matching btree_fs_delete.
func (fs *FileStore) Delete(filename string) error {
	hash := hashString(filename)
	chain, err := fs.nameTree.Search(hash)
	if err != nil {
		fs.log.Printf("vfs: file not found: %q", filename)
		return kernel.ErrNotFound
	}

	idx := -1
	for i, e := range chain {
		if e.name == filename {
			idx = i
			break
		}
	}
	if idx < 0 {
		fs.log.Printf("vfs: file not found: %q", filename)
		return kernel.ErrNotFound
	}

	inodeNum := chain[idx].inodeNum
	chain = append(chain[:idx], chain[idx+1:]...)
	fs.nameTree.Delete(hash)
	if len(chain) > 0 {
		fs.nameTree.Insert(hash, chain)
	}

	in, err := fs.GetInode(inodeNum)
	if err == nil {
		fs.FreeInode(in)
	}

	fs.log.Printf("vfs: deleted file %q", filename)
	return nil
}

// List invokes visit for every in-use inode reachable from the name tree,
// matching btree_fs_list's traversal callback.
func (fs *FileStore) List(visit func(filename string, in *Inode)) {
	fs.nameTree.Traverse(func(_ uint32, chain []nameEntry) {
		for _, e := range chain {
			in, err := fs.GetInode(e.inodeNum)
			if err == nil && in.InUse {
				visit(e.name, in)
			}
		}
	})
}

// Stat returns filename's inode, matching btree_fs_stat.
func (fs *FileStore) Stat(filename string) (*Inode, error) {
	return fs.Open(filename)
}

// Stats is a snapshot of fs_print_stats' counters.
type Stats struct {
	TotalInodes, FreeInodes int
	TotalBlocks, FreeBlocks int
}

// Stats reports the file store's pool utilization.
func (fs *FileStore) Stats() Stats {
	return Stats{
		TotalInodes: fs.totalInodes,
		FreeInodes:  fs.freeInodes,
		TotalBlocks: fs.totalBlocks,
		FreeBlocks:  fs.freeBlocks,
	}
}
