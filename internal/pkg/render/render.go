package render

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/poro/notify-engine/internal/entity"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Renderer substitutes {{variable}} tokens in template bodies using the
// template's declared variable contract. Substitution is deterministic:
// identical inputs always produce byte-identical output.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces the frozen body for one channel. Tokens resolve from the
// caller-supplied variables first, then the contract's default value. An
// unresolvable token is left literal and reported as a warning rather than
// failing the render.
func (r *Renderer) Render(tmpl *entity.NotificationTemplate, channel entity.Channel, vars map[string]interface{}) (entity.RenderedBody, []string, error) {
	body, ok := tmpl.ChannelBodies[channel]
	if !ok {
		return entity.RenderedBody{}, nil, entity.ErrChannelNotSupported
	}

	var warnings []string
	substitute := func(raw string) string {
		return tokenPattern.ReplaceAllStringFunc(raw, func(token string) string {
			name := tokenPattern.FindStringSubmatch(token)[1]
			if value, found := resolveVariable(tmpl, name, vars); found {
				return stringify(value)
			}
			warnings = append(warnings, fmt.Sprintf("unresolved variable %q in %s body of template %s", name, channel, tmpl.Type))
			return token
		})
	}

	return entity.RenderedBody{
		Title:   substitute(body.Title),
		Subject: substitute(body.Subject),
		Message: substitute(body.Message),
		HTML:    substitute(body.HTML),
		Text:    substitute(body.Text),
	}, warnings, nil
}

func resolveVariable(tmpl *entity.NotificationTemplate, name string, vars map[string]interface{}) (interface{}, bool) {
	if value, ok := vars[name]; ok {
		return value, true
	}
	for _, v := range tmpl.Variables {
		if v.Name == name && v.DefaultValue != nil {
			return v.DefaultValue, true
		}
	}
	return nil, false
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// ValidateVariables checks the supplied variables against the template's
// contract. It returns one violation string per problem; an empty slice
// means the variables are acceptable.
func ValidateVariables(tmpl *entity.NotificationTemplate, vars map[string]interface{}) []string {
	var violations []string

	for _, decl := range tmpl.Variables {
		value, present := vars[decl.Name]
		if !present {
			if decl.Required && decl.DefaultValue == nil {
				violations = append(violations, fmt.Sprintf("required variable %q is missing", decl.Name))
			}
			continue
		}

		if msg := checkType(decl, value); msg != "" {
			violations = append(violations, msg)
		}
	}

	return violations
}

func checkType(decl entity.TemplateVariable, value interface{}) string {
	switch decl.Type {
	case entity.VarString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("variable %q must be a string", decl.Name)
		}
	case entity.VarNumber:
		if !isNumeric(value) {
			return fmt.Sprintf("variable %q must be a number", decl.Name)
		}
	case entity.VarDate:
		if !isDate(value) {
			return fmt.Sprintf("variable %q must be a parseable date", decl.Name)
		}
	case entity.VarURL:
		if !isURL(value) {
			return fmt.Sprintf("variable %q must be a valid URL", decl.Name)
		}
	case entity.VarObject:
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Sprintf("variable %q must be an object", decl.Name)
		}
	}
	return ""
}

func isNumeric(value interface{}) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	case string:
		_, err := strconv.ParseFloat(value.(string), 64)
		return err == nil
	}
	return false
}

func isDate(value interface{}) bool {
	switch v := value.(type) {
	case time.Time:
		return true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if _, err := time.Parse(layout, v); err == nil {
				return true
			}
		}
	}
	return false
}

func isURL(value interface{}) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
