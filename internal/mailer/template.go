package mailer

import (
	"fmt"
	"sync"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/osteele/liquid"
)

// Personalizer renders Liquid merge tags such as {{ first_name }} or
// {{ first_name | default: "there" }}. Parsed templates are cached by source.
type Personalizer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

func NewPersonalizer() *Personalizer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})
	return &Personalizer{engine: engine}
}

// Render expands text against vars. Text that fails to parse or render is
// returned unchanged so a bad tag never blocks a send.
func (p *Personalizer) Render(text string, vars map[string]interface{}) string {
	tpl, err := p.template(text)
	if err != nil {
		logger.Warn("template parse failed, sending raw content", "error", err)
		return text
	}
	out, rerr := tpl.RenderString(vars)
	if rerr != nil {
		logger.Warn("template render failed, sending raw content", "error", rerr)
		return text
	}
	return out
}

func (p *Personalizer) template(text string) (*liquid.Template, error) {
	if cached, ok := p.cache.Load(text); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := p.engine.ParseString(text)
	if err != nil {
		return nil, err
	}
	p.cache.Store(text, tpl)
	return tpl, nil
}
