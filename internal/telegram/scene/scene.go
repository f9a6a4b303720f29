// Package scene implements the conversation state machine: named scenes
// with enter/leave hooks, callback-action tables, and text handlers,
// held in an explicit registry built once at startup.
package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"imshaby_bot/internal/logging"
)

// HandlerFunc handles one update inside a scene.
type HandlerFunc func(ctx context.Context, tc *Context) error

// Definition describes one scene. Exactly one scene is active per chat;
// it receives every update for that chat until a transition away.
type Definition struct {
	Name string

	// Enter runs when the scene becomes active.
	Enter HandlerFunc
	// Leave runs right before the scene is deactivated.
	Leave HandlerFunc
	// Actions maps callback-action names to handlers. Actions are
	// matched before OnText because callback queries are a distinct
	// update type from text messages.
	Actions map[string]HandlerFunc
	// OnText receives free-text messages not claimed by the router.
	OnText HandlerFunc
}

// Manager dispatches updates into the active scene and performs scene
// transitions.
type Manager struct {
	scenes map[string]*Definition
	logger *logrus.Entry
}

// NewManager constructs an empty scene registry.
func NewManager(logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Manager{
		scenes: make(map[string]*Definition),
		logger: logger,
	}
}

// Register adds scene definitions to the registry. Re-registering a
// name is a configuration error.
func (m *Manager) Register(defs ...*Definition) error {
	for _, def := range defs {
		if def == nil || def.Name == "" {
			return errors.New("scene definition requires a name")
		}
		if _, exists := m.scenes[def.Name]; exists {
			return fmt.Errorf("scene %q is already registered", def.Name)
		}
		m.scenes[def.Name] = def
	}
	return nil
}

// Enter deactivates the current scene and activates the named one. An
// unknown scene name is logged and ignored so a stale callback button
// cannot take the conversation down.
func (m *Manager) Enter(ctx context.Context, tc *Context, name string) error {
	if err := m.check(tc); err != nil {
		return err
	}

	def, ok := m.scenes[name]
	if !ok {
		m.logger.WithFields(logging.Fields{
			"event": "scene_unknown",
			"scene": name,
		}).Error("attempt to enter unregistered scene")
		return nil
	}

	if err := m.Leave(ctx, tc); err != nil {
		return err
	}

	tc.Session.Scene = name

	m.logger.WithFields(logging.Fields{
		"event":   "scene_enter",
		"scene":   name,
		"chat_id": tc.ChatID,
	}).Debug("entering scene")

	if def.Enter == nil {
		return nil
	}
	return def.Enter(ctx, tc)
}

// Leave deactivates the current scene: tracked messages are deleted,
// the leave hook runs, and scene-local session state is cleared.
func (m *Manager) Leave(ctx context.Context, tc *Context) error {
	if err := m.check(tc); err != nil {
		return err
	}

	def, ok := m.scenes[tc.Session.Scene]
	if !ok {
		tc.Session.Scene = ""
		return nil
	}

	tc.CleanupMessages(ctx)

	var err error
	if def.Leave != nil {
		err = def.Leave(ctx, tc)
	}

	tc.Session.ClearSceneState()
	tc.Session.ClearAuth()
	tc.Session.Scene = ""

	m.logger.WithFields(logging.Fields{
		"event":   "scene_leave",
		"scene":   def.Name,
		"chat_id": tc.ChatID,
	}).Debug("left scene")

	return err
}

// Dispatch routes the update into the active scene. Callback actions
// are tried first, then the free-text handler. The returned bool
// reports whether any handler claimed the update.
func (m *Manager) Dispatch(ctx context.Context, tc *Context) (bool, error) {
	if err := m.check(tc); err != nil {
		return false, err
	}

	def, ok := m.scenes[tc.Session.Scene]
	if !ok {
		return false, nil
	}

	if tc.Action.Name != "" {
		handler, ok := def.Actions[tc.Action.Name]
		if !ok {
			m.logger.WithFields(logging.Fields{
				"event":  "scene_action_unknown",
				"scene":  def.Name,
				"action": tc.Action.Name,
			}).Warn("callback action has no handler in active scene")
			return false, nil
		}
		return true, handler(ctx, tc)
	}

	if tc.Text != "" && def.OnText != nil {
		return true, def.OnText(ctx, tc)
	}

	return false, nil
}

// ActiveScene returns the name of the scene currently owning the chat.
func (m *Manager) ActiveScene(tc *Context) string {
	if tc == nil || tc.Session == nil {
		return ""
	}
	if _, ok := m.scenes[tc.Session.Scene]; !ok {
		return ""
	}
	return tc.Session.Scene
}

func (m *Manager) check(tc *Context) error {
	if m == nil || m.scenes == nil {
		return errors.New("scene manager is not initialized")
	}
	if tc == nil || tc.Session == nil {
		return errors.New("scene context with session is required")
	}
	return nil
}
