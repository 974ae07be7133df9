package relod

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	hits int
}

func TestApp_addResources(t *testing.T) {
	app := NewApp()

	resource1 := &MockResource1{name: "Resource1"}
	app.addResources(resource1)

	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	// Adding the same type again is a programming error.
	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := &MockResource2{}
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem())
}

func TestApp_SystemInjection(t *testing.T) {
	app := NewApp()
	res := &MockResource2{}
	app.addResources(res)

	app.UseSystem(System(func(cmd *Commands, r *MockResource2) {
		if cmd == nil {
			t.Errorf("Commands not injected")
		}
		r.hits++
	}))

	app.Step(time.Second / 60)
	app.Step(time.Second / 60)

	assert.Equal(t, 2, res.hits)
}

func TestApp_UnresolvableDependencyPanics(t *testing.T) {
	app := NewApp()
	app.UseSystem(System(func(r *MockResource1) {}))

	assert.Panics(t, func() {
		app.Step(time.Second / 60)
	})
}

func TestApp_StageOrder(t *testing.T) {
	app := NewApp()
	type trace struct{ order []string }
	tr := &trace{}
	app.addResources(tr)

	record := func(name string) systemFn {
		return func(tr *trace) { tr.order = append(tr.order, name) }
	}

	app.UseSystem(System(record("render")).InStage(Render))
	app.UseSystem(System(record("prelude")).InStage(Prelude))
	app.UseSystem(System(record("update")).InStage(Update))
	app.UseSystem(System(record("finale")).InStage(Finale))

	app.Step(time.Second / 60)

	assert.Equal(t, []string{"prelude", "update", "render", "finale"}, tr.order)
}

func TestApp_UseStage(t *testing.T) {
	app := NewApp()
	type trace struct{ order []string }
	tr := &trace{}
	app.addResources(tr)

	groupStage := Stage{Name: "Grouping"}
	app.UseStage(groupStage, BeforeStage(Update))

	app.UseSystem(System(func(tr *trace) { tr.order = append(tr.order, "group") }).InStage(groupStage))
	app.UseSystem(System(func(tr *trace) { tr.order = append(tr.order, "update") }).InStage(Update))

	app.Step(time.Second / 60)
	assert.Equal(t, []string{"group", "update"}, tr.order)
}

func TestApp_StepAdvancesClock(t *testing.T) {
	app := NewApp()
	app.UseModules(TimeModule{})

	app.Step(time.Second / 30)
	app.Step(time.Second / 30)

	clock := resourceOf[Time](app)
	require.NotNil(t, clock)
	assert.Equal(t, uint64(2), clock.Frame)
	assert.Equal(t, time.Second/30, clock.Dt)
}

func TestApp_DestroyRendererFlushedBetweenStages(t *testing.T) {
	app := NewApp()
	app.UseModules(SceneModule{})
	app.build()

	scene := resourceOf[Scene](app)
	require.NotNil(t, scene)

	obj := scene.AddObject("X")
	r := testRenderer("r", 100)
	obj.AddRenderer(r)

	app.UseSystem(System(func(cmd *Commands) {
		cmd.DestroyRenderer(r)
	}).InStage(Update))

	seen := -1
	app.UseSystem(System(func(scene *Scene) {
		seen = len(scene.Object("X").Renderers)
	}).InStage(Render))

	app.Step(time.Second / 60)

	assert.Equal(t, 0, seen, "destroy should flush before the next stage runs")
	assert.True(t, r.Destroyed())
}
