package engine_test

import (
	"context"
	"fmt"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// printingHandler prints the batch ids of delivered evaluation events.
type printingHandler struct{}

func (printingHandler) EventTypes() []engine.EventType {
	return []engine.EventType{engine.EventFinishedEvaluation}
}

func (printingHandler) HandleEvent(_ context.Context, event *engine.Event) error {
	for _, record := range event.Results {
		fmt.Printf("%s batch %d from %s\n", record.Kind(), record.BatchID(), event.Source)
	}
	return nil
}

// Example_eventDelivery demonstrates how the bus fans evaluation events out
// to subscribed handlers.
func Example_eventDelivery() {
	bus := engine.NewBus()

	// 1. Subscribe a handler; it only receives the event types it declares.
	id := bus.Subscribe(printingHandler{})
	defer bus.Unsubscribe(id)

	// 2. Build the result record a finished evaluation carries.
	record := &results.FunctionResults{
		Batch:        3,
		Realizations: 2,
		Objectives:   1,
		Functions:    &results.Functions{WeightedObjective: 0.5, Objectives: []float64{0.5}},
	}

	// 3. Start events carry no results and are not delivered to this
	// handler.
	_ = bus.Emit(context.Background(), &engine.Event{
		Type:   engine.EventStartEvaluation,
		Source: "optimizer",
		Tags:   []string{"tag0"},
	})

	// 4. Finished events deliver the batch's records in order.
	_ = bus.Emit(context.Background(), &engine.Event{
		Type:    engine.EventFinishedEvaluation,
		Source:  "optimizer",
		Tags:    []string{"tag0"},
		Results: []results.Record{record},
	})

	// Output: functions batch 3 from optimizer
}

// Example_classifiedErrors demonstrates the classified error type.
func Example_classifiedErrors() {
	err := engine.NewConfigError("objective weights must sum to 1", nil).
		WithComponent("config")

	fmt.Println(engine.IsConfig(err))
	fmt.Println(engine.IsPlugin(err))
	fmt.Println(err)
	// Output:
	// true
	// false
	// [config] objective weights must sum to 1 (component=config)
}
