package queue

import (
	"comicinsights/pkg/schema"
)

// Queue serializes generation requests against a single diffusion backend.
type Queue interface {
	Start()
	Stop()
	Add(req *schema.Txt2ImgRequest) (chan [][]byte, chan error, error)
}
