package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/model"
)

type TerminalDef struct {
	ID       string  `yaml:"id"`
	Priority int     `yaml:"priority"`
	Power    float64 `yaml:"power"`
	On       bool    `yaml:"on"`
}

func (d TerminalDef) ToModel() model.Terminal {
	status := model.StatusOff
	if d.On {
		status = model.StatusOn
	}
	return model.Terminal{ID: d.ID, Priority: d.Priority, Status: status, DeviceID: "stm32_1"}
}

type Expected struct {
	Selected []string `yaml:"selected"`
	Acked    int      `yaml:"acked"`
}

type Scenario struct {
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description,omitempty"`
	Capacity      float64         `yaml:"capacity"`
	Mode          allocation.Mode `yaml:"mode"`
	Cycles        int             `yaml:"cycles"`
	Terminals     []TerminalDef   `yaml:"terminals"`
	FailTerminals []string        `yaml:"fail_terminals,omitempty"`
	Expected      Expected        `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Cycles <= 0 {
		sc.Cycles = 1
	}
	return &sc, nil
}
