package api

import (
	"net/http"
	"os"

	service "github.com/okian/wearsense/internal/app"
)

// filesOnly hides directories so the media tree is never listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// newMediaHandler serves stored images from root under the media prefix.
func newMediaHandler(root string) http.Handler {
	return http.StripPrefix(service.MediaPrefix, http.FileServer(filesOnly{fs: http.Dir(root)}))
}
