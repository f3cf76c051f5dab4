package cards

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	POST(path string, body any) error
	PUT(path string, body any) error
	GET(path string, headers map[string]string) error
	DELETE(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetAdminToken() string
	Save(name, value string)
	Recall(name string) string
}

// RegisterSteps registers card lifecycle, search, and resave steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &cardSteps{tc: tc}

	ctx.Step(`^I create a (\w+) card named "([^"]*)" with aspects "([^"]*)"$`, steps.createCard)
	ctx.Step(`^I create a (\w+) card named "([^"]*)" with description "([^"]*)"$`, steps.createCardWithDescription)
	ctx.Step(`^I rename card "([^"]*)" to "([^"]*)"$`, steps.renameCard)
	ctx.Step(`^I fetch card "([^"]*)"$`, steps.fetchCard)
	ctx.Step(`^I fetch the text of card "([^"]*)"$`, steps.fetchText)
	ctx.Step(`^I delete card "([^"]*)"$`, steps.deleteCard)
	ctx.Step(`^I create a (\w+) card named "([^"]*)" with aspects "([^"]*)" anonymously$`, steps.createAnonymously)
	ctx.Step(`^I (increment|decrement) (\w+) on card "([^"]*)"$`, steps.adjustAspect)
	ctx.Step(`^I adjust (\w+) on card "([^"]*)" with direction "([^"]*)"$`, steps.adjustWithDirection)
	ctx.Step(`^I search for cards named "([^"]*)"$`, steps.searchByName)
	ctx.Step(`^the search should return card "([^"]*)"$`, steps.searchShouldReturn)
	ctx.Step(`^the search should not return card "([^"]*)"$`, steps.searchShouldNotReturn)
	ctx.Step(`^I trigger a resave( without the admin token)?$`, steps.triggerResave)
}

type cardSteps struct {
	tc TestContext
}

// parseAspects reads "BLOOM:2,ZEAL:1" into an aspect list.
func parseAspects(list string) (map[string]int, error) {
	out := map[string]int{}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var name string
		var n int
		if _, err := fmt.Sscanf(strings.Replace(part, ":", " ", 1), "%s %d", &name, &n); err != nil {
			return nil, fmt.Errorf("aspect %q: want NAME:COUNT", part)
		}
		out[name] = n
	}
	return out, nil
}

func (s *cardSteps) create(name string, body map[string]any) error {
	if err := s.tc.POST("/api/cards", body); err != nil {
		return err
	}
	if got := s.tc.GetLastResponseStatus(); got != http.StatusCreated {
		return fmt.Errorf("create %s: status %d: %s", name, got, s.tc.GetLastResponseBody())
	}
	cardID, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save(name, fmt.Sprint(cardID))
	return nil
}

func (s *cardSteps) createCard(ctx context.Context, kind, name, aspects string) error {
	list, err := parseAspects(aspects)
	if err != nil {
		return err
	}
	return s.create(name, map[string]any{
		"type":       strings.ToUpper(kind),
		"name":       name,
		"aspectList": list,
	})
}

func (s *cardSteps) createCardWithDescription(ctx context.Context, kind, name, description string) error {
	return s.create(name, map[string]any{
		"type":        strings.ToUpper(kind),
		"name":        name,
		"description": description,
	})
}

// createAnonymously posts without a token and leaves the response for
// assertions.
func (s *cardSteps) createAnonymously(ctx context.Context, kind, name, aspects string) error {
	list, err := parseAspects(aspects)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodPost, "/api/cards", map[string]any{
		"type":       strings.ToUpper(kind),
		"name":       name,
		"aspectList": list,
	}, map[string]string{"Authorization": ""})
}

func (s *cardSteps) renameCard(ctx context.Context, name, newName string) error {
	return s.tc.PUT("/api/cards/{"+name+"}", map[string]any{"name": newName})
}

func (s *cardSteps) fetchCard(ctx context.Context, name string) error {
	return s.tc.GET("/api/cards/{"+name+"}", nil)
}

func (s *cardSteps) fetchText(ctx context.Context, name string) error {
	return s.tc.GET("/api/cards/{"+name+"}/text", nil)
}

func (s *cardSteps) deleteCard(ctx context.Context, name string) error {
	return s.tc.DELETE("/api/cards/{" + name + "}")
}

func (s *cardSteps) adjustAspect(ctx context.Context, direction, aspectName, name string) error {
	return s.tc.POST(fmt.Sprintf("/api/cards/{%s}/aspects/%s/%s", name, aspectName, direction), nil)
}

func (s *cardSteps) adjustWithDirection(ctx context.Context, aspectName, name, direction string) error {
	return s.adjustAspect(ctx, direction, aspectName, name)
}

func (s *cardSteps) searchByName(ctx context.Context, name string) error {
	return s.tc.POST("/api/cards/search", map[string]any{"name": name, "pageSize": 100})
}

func (s *cardSteps) searchIDs() ([]string, error) {
	raw, err := s.tc.GetResponseField("ids")
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("ids is not a list: %v", raw)
	}
	ids := make([]string, 0, len(list))
	for _, v := range list {
		ids = append(ids, fmt.Sprint(v))
	}
	return ids, nil
}

func (s *cardSteps) searchShouldReturn(ctx context.Context, name string) error {
	ids, err := s.searchIDs()
	if err != nil {
		return err
	}
	want := s.tc.Recall(name)
	for _, got := range ids {
		if got == want {
			return nil
		}
	}
	return fmt.Errorf("card %s (%s) missing from %v", name, want, ids)
}

func (s *cardSteps) searchShouldNotReturn(ctx context.Context, name string) error {
	ids, err := s.searchIDs()
	if err != nil {
		return err
	}
	want := s.tc.Recall(name)
	for _, got := range ids {
		if got == want {
			return fmt.Errorf("card %s (%s) unexpectedly returned", name, want)
		}
	}
	return nil
}

func (s *cardSteps) triggerResave(ctx context.Context, withoutToken string) error {
	headers := map[string]string{}
	if withoutToken == "" {
		headers["X-Admin-Token"] = s.tc.GetAdminToken()
	}
	return s.tc.Do(http.MethodPost, "/admin/cards/resave", nil, headers)
}
