package page

import (
	"io"
	"os"
	"pagedb/pkg/primitives"
	"sync"

	"github.com/pkg/errors"
)

// BaseFile provides page-granular I/O over one table file.
//
// Key responsibilities:
//   - Managing the underlying OS file handle
//   - Reading and writing whole pages at PageSize offsets
//   - Calculating page counts and allocating new pages
//
// Thread-safety: All public methods use read/write locks to ensure safe concurrent access.
type BaseFile struct {
	file     *os.File
	fileID   primitives.TableID
	mutex    sync.RWMutex
	filePath primitives.Filepath
}

// NewBaseFile opens (creating if needed) the file at filePath.
//
// Parameters:
//   - filePath: The path to the table file to open
//
// Returns:
//   - *BaseFile: A pointer to the initialized BaseFile structure
//   - error: An error if the path is empty or opening the file fails
func NewBaseFile(filePath primitives.Filepath) (*BaseFile, error) {
	if filePath.IsEmpty() {
		return nil, errors.New("filePath cannot be empty")
	}

	file, err := os.OpenFile(filePath.String(), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file %s", filePath)
	}

	return &BaseFile{
		file:     file,
		fileID:   filePath.Hash(),
		filePath: filePath,
	}, nil
}

// GetID returns the identifier derived from the file path.
func (bf *BaseFile) GetID() primitives.TableID {
	return bf.fileID
}

// NumPages returns the total number of pages in this file, rounding a
// trailing partial page up.
func (bf *BaseFile) NumPages() (primitives.PageNumber, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	return bf.numPages()
}

func (bf *BaseFile) numPages() (primitives.PageNumber, error) {
	if bf.file == nil {
		return 0, errors.New("file is closed")
	}

	fileInfo, err := bf.file.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "failed to stat file")
	}

	numPages := primitives.PageNumber(fileInfo.Size() / int64(PageSize))
	if fileInfo.Size()%int64(PageSize) != 0 {
		numPages++
	}

	return numPages, nil
}

// ReadPageData reads exactly PageSize bytes at the given page number.
// Reading past the end of the file returns io.EOF (possibly wrapped).
func (bf *BaseFile) ReadPageData(pageNo primitives.PageNumber) ([]byte, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if bf.file == nil {
		return nil, errors.New("file is closed")
	}

	offset := int64(pageNo) * int64(PageSize) // #nosec G115
	pageData := make([]byte, PageSize)

	n, err := bf.file.ReadAt(pageData, offset)
	if err == io.EOF && n > 0 {
		return pageData, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read page %d of %s", pageNo, bf.filePath)
	}
	return pageData, nil
}

// WritePageData writes exactly PageSize bytes at the given page number.
// Durability is deferred to Sync.
func (bf *BaseFile) WritePageData(pageNo primitives.PageNumber, pageData []byte) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return errors.New("file is closed")
	}

	if len(pageData) != PageSize {
		return errors.Errorf("invalid page data size: expected %d, got %d", PageSize, len(pageData))
	}

	offset := int64(pageNo) * int64(PageSize) // #nosec G115
	if _, err := bf.file.WriteAt(pageData, offset); err != nil {
		return errors.Wrapf(err, "failed to write page %d of %s", pageNo, bf.filePath)
	}

	return nil
}

// Sync flushes written pages to stable storage.
func (bf *BaseFile) Sync() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return errors.New("file is closed")
	}
	return errors.Wrap(bf.file.Sync(), "failed to sync file")
}

// AllocateNewPage reserves the next page number by extending the file with a
// zero-filled page, and returns that page number.
func (bf *BaseFile) AllocateNewPage() (primitives.PageNumber, error) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	allocated, err := bf.numPages()
	if err != nil {
		return 0, err
	}

	zeroPage := make([]byte, PageSize)
	offset := int64(allocated) * int64(PageSize) // #nosec G115

	if _, err := bf.file.WriteAt(zeroPage, offset); err != nil {
		return 0, errors.Wrap(err, "failed to reserve page space")
	}

	return allocated, nil
}

// Close closes the underlying file handle. It is safe to call Close twice.
func (bf *BaseFile) Close() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file != nil {
		err := bf.file.Close()
		bf.file = nil
		return err
	}

	return nil
}

// FilePath returns the path used to open this file.
func (bf *BaseFile) FilePath() primitives.Filepath {
	return bf.filePath
}
