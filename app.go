package relod

import (
	"fmt"
	"reflect"
	"runtime"
	"time"
)

type systemFn any

// App is the frame-loop host: an ordered list of stages, each holding
// systems that receive their dependencies (resources, *Commands) by
// reflection. The host driver calls Step once per rendered frame.
type App struct {
	modules   []Module
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any
	built     bool

	// Deferred scene mutation, flushed after every stage.
	pendingDestroys []*MeshRenderer
}

// Module installs resources and systems into an App.
type Module interface {
	Install(app *App, cmd *Commands)
}

func NewApp() *App {
	app := &App{
		systems:   make(map[string][]systemFn),
		resources: make(map[reflect.Type]any),
	}
	for _, stage := range defaultStages {
		app.stages = append(app.stages, stage)
		app.initStage(stage)
	}
	return app
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

func (app *App) UseModules(modules ...Module) *App {
	app.modules = append(app.modules, modules...)
	return app
}

func (app *App) build() {
	if app.built {
		return
	}
	app.built = true

	cmd := app.Commands()
	for _, module := range app.modules {
		module.Install(app, cmd)
	}
}

// Step advances the frame clock by dt and runs every stage in order.
// Hosts and tests drive frames explicitly instead of an internal loop.
func (app *App) Step(dt time.Duration) {
	app.build()

	if clock, ok := app.resources[reflect.TypeOf(Time{})].(*Time); ok {
		clock.Dt = dt
		clock.Time = clock.Time.Add(dt)
		clock.Frame++
	}

	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
		app.FlushCommands()
	}
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			panic(fmt.Sprintf(
				"Unable to resolve system dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			))
		}
	}
	systemValue.Call(args)
}

// FlushCommands applies buffered scene mutations. Destroys run between
// stages so no system observes a half-removed renderer mid-stage.
func (app *App) FlushCommands() {
	if len(app.pendingDestroys) == 0 {
		return
	}

	scene, haveScene := app.resources[reflect.TypeOf(Scene{})].(*Scene)
	sched, haveSched := app.resources[reflect.TypeOf(Scheduler{})].(*Scheduler)

	for _, r := range app.pendingDestroys {
		if haveSched {
			sched.unregisterRenderer(r)
		}
		if haveScene {
			scene.removeRenderer(r)
		}
		r.destroyed = true
	}
	app.pendingDestroys = app.pendingDestroys[:0]
}

// Logger returns the first Logger resource if present, otherwise a no-op
// logger. Safe to call at any time; never returns nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}

// resourceOf fetches a typed resource during module Install wiring.
func resourceOf[T any](app *App) *T {
	var zero T
	if r, ok := app.resources[reflect.TypeOf(zero)].(*T); ok {
		return r
	}
	return nil
}
