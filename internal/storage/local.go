// Package storage はジョブのファイル（ダウンロードした生データとソート結果）を作業ディレクトリに保存します。
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local は一つのディレクトリ直下にファイルを保存します。名前にパス区切りは使えません。
type Local struct {
	root string
}

// NewLocal は root を必要に応じて作成し、そこを基点とする Local を返します。
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: abs}, nil
}

// NewTemp は一時ディレクトリを作成します。不要になったら RemoveAll で削除してください。
func NewTemp(pattern string) (*Local, error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp storage: %w", err)
	}
	return &Local{root: dir}, nil
}

// Root はディレクトリの絶対パスを返します。
func (l *Local) Root() string { return l.root }

// Path は name の絶対パスを返します。
func (l *Local) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid storage name %q", name)
	}
	return filepath.Join(l.root, name), nil
}

// Create は name を書き込み用に開きます（既存の内容は破棄）。
func (l *Local) Create(name string) (*os.File, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
}

// Open は name を読み込み用に開きます。
func (l *Local) Open(name string) (*os.File, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Size は name のバイト数を返します。
func (l *Local) Size(name string) (int64, error) {
	path, err := l.Path(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove は name を削除します。存在しない場合もエラーにしません。
func (l *Local) Remove(name string) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveAll はディレクトリごと削除します。
func (l *Local) RemoveAll() error {
	return os.RemoveAll(l.root)
}
