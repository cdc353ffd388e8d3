package agents

import (
	"cad-lab/domain"
	"cad-lab/domain/mimetypes"
	"cad-lab/errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var imageTag = regexp.MustCompile(`<img ([^>]+)>`)

// withImages turns every <img path> tag of the content into an image part.
// Tags that cannot be loaded stay in the text.
func (a *Agent) withImages(msg domain.Message) domain.Message {
	msg.Content = imageTag.ReplaceAllStringFunc(msg.Content, func(tag string) string {
		path := strings.TrimSpace(imageTag.FindStringSubmatch(tag)[1])
		img, err := LoadImage(path)
		if err != nil {
			a.log.Warn("Unable to load image", "path", path, "error", err)
			return tag
		}
		msg.Images = append(msg.Images, img)
		return "<image>"
	})
	return msg
}

// LoadImage reads an image file and sniffs its type.
func LoadImage(path string) (domain.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Image{}, err
	}
	mtype := mimetype.Detect(data)
	kind, ok := mimetypes.Image(mtype.String())
	if !ok {
		return domain.Image{}, fmt.Errorf("%w: %s is %s", errors.ErrUnsupportedImage, path, mtype.String())
	}
	return domain.Image{MIME: string(kind), Data: data}, nil
}
