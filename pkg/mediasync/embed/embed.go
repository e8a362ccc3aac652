// Package embed provides the rendering collaborator that produces embed
// snippets for assets whose provider returns none (audio on UOLMais). The
// synchronization core never renders markup itself.
package embed

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/virgula/mediasync/pkg/mediasync"
)

// defaultAudioTemplate renders the UOLMais audio player.
const defaultAudioTemplate = `<iframe src="https://mais.uol.com.br/static/player/audio.html?mediaId={{.MediaID}}" width="100%" height="65" frameborder="0" scrolling="no"></iframe>`

// TemplateRenderer implements mediasync.EmbedRenderer with html/template.
type TemplateRenderer struct {
	audio *template.Template
}

// NewTemplateRenderer creates a renderer. An empty audioTemplate selects the
// built-in player snippet.
func NewTemplateRenderer(audioTemplate string) (*TemplateRenderer, error) {
	if audioTemplate == "" {
		audioTemplate = defaultAudioTemplate
	}

	tmpl, err := template.New("audio_embed").Parse(audioTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse audio embed template: %w", err)
	}

	return &TemplateRenderer{audio: tmpl}, nil
}

func (r *TemplateRenderer) RenderEmbed(ctx context.Context, kind mediasync.MediaKind, providerJobID string) (string, error) {
	if kind != mediasync.KindAudio {
		return "", fmt.Errorf("no embed template for media kind %s", kind)
	}

	var buf bytes.Buffer
	if err := r.audio.Execute(&buf, struct{ MediaID string }{MediaID: providerJobID}); err != nil {
		return "", fmt.Errorf("failed to render audio embed: %w", err)
	}
	return buf.String(), nil
}
