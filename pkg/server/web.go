package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web/index.html web/static
var webFS embed.FS

var indexHTML = mustReadFile("web/index.html")

func mustReadFile(name string) []byte {
	data, err := webFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return data
}

// staticFS 返回 /static 下的静态资源
func staticFS() http.FileSystem {
	sub, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
