package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileMode 帳本 WAL 只允許擁有者讀寫
const FileMode fs.FileMode = 0600

var (
	// ErrCorrupt 中間某一行不是合法的 JSON
	ErrCorrupt = errors.New("wal: corrupt record")

	// ErrBroken 寫入失敗且無法截回寫入前的長度，之後的寫入一律拒絕
	ErrBroken = errors.New("wal: broken after failed write")
)

// file WAL 需要的檔案操作，*os.File 即滿足
type file interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
	Stat() (fs.FileInfo, error)
}

// WAL 帳本提交紀錄，每行一筆 JSON (JSON Lines)，只追加不修改
//
// 一行只有在以換行結尾時才算寫完；當機留下的半行會在 ReadAll 時被截掉
type WAL struct {
	file    file
	mu      sync.Mutex
	size    int64 // 最後一筆完整紀錄的結尾
	records int
	broken  error
}

// NewWAL 開啟或建立 WAL 檔案
func NewWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileMode)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	w, err := newWAL(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	return w, nil
}

func newWAL(f file) (*WAL, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &WAL{file: f, size: info.Size()}, nil
}

// Write 追加一筆紀錄並 fsync
//
// 回傳 nil 代表這筆紀錄已落盤；回傳錯誤時檔案會被截回寫入前的長度，
// 重啟後不會重放這筆紀錄。截斷也失敗時 WAL 進入 broken 狀態
func (w *WAL) Write(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode wal record: %w", err)
	}
	raw = append(raw, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return fmt.Errorf("%w: %v", ErrBroken, w.broken)
	}
	if _, err := w.file.Write(raw); err != nil {
		return w.rollback(err)
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(err)
	}
	w.size += int64(len(raw))
	w.records++
	return nil
}

// rollback 把寫到一半或未確認落盤的內容截掉，呼叫端需持有 mu
func (w *WAL) rollback(cause error) error {
	if err := w.file.Truncate(w.size); err != nil {
		w.broken = fmt.Errorf("write: %v, truncate: %v", cause, err)
		return fmt.Errorf("%w: %v", ErrBroken, w.broken)
	}
	if err := w.file.Sync(); err != nil {
		w.broken = fmt.Errorf("write: %v, sync after truncate: %v", cause, err)
		return fmt.Errorf("%w: %v", ErrBroken, w.broken)
	}
	return cause
}

// Records 開檔以來讀到與寫入的紀錄數
func (w *WAL) Records() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 從頭依序把每筆紀錄交給 callback
//
// 參數:
//
//	callback: 收到一行完整的 JSON；回傳錯誤會中止讀取
//
// 回傳:
//
//	error: ErrCorrupt (中間行損毀)、callback 的錯誤或 I/O 錯誤
//
// 結尾沒有換行的殘行視為未完成的寫入，會被截斷後忽略
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	r := bufio.NewReader(w.file)
	var (
		offset int64
		line   int
	)
	w.records = 0
	for {
		raw, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			w.size = offset
			if len(raw) > 0 {
				return w.truncate(offset)
			}
			return nil
		}
		if err != nil {
			return err
		}
		line++
		offset += int64(len(raw))

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			return fmt.Errorf("%w at line %d", ErrCorrupt, line)
		}
		if err := callback(raw); err != nil {
			return err
		}
		w.records++
	}
}

// truncate 丟掉 offset 之後的殘行
func (w *WAL) truncate(offset int64) error {
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("truncate torn wal tail: %w", err)
	}
	return w.file.Sync()
}
