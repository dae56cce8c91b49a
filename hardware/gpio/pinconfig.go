package gpio

// PinConfig is the setup of a pin as it is persisted between runs.
type PinConfig struct {
	Direction *Direction `json:"direction,omitempty"`
	Level     *Level     `json:"level,omitempty"`
	PWM       *PWMConfig `json:"pwm,omitempty"`
	Edge      Edge       `json:"edge,omitempty"`
}

type PWMConfig struct {
	Duty   int `json:"duty"`
	Period int `json:"period"`
}

// Apply sets a pin up the way c describes: direction, then level, then
// software PWM, then the interrupt, which is delivered to h.
func (e *Engine) Apply(id int, c PinConfig, h Handler) error {
	if c.Direction != nil {
		if err := e.SetMode(id, *c.Direction); err != nil {
			return err
		}
	}

	if c.Level != nil {
		if err := e.Write(id, *c.Level); err != nil {
			return err
		}
	}

	if c.PWM != nil {
		if err := e.WritePWM(id, c.PWM.Duty, c.PWM.Period); err != nil {
			return err
		}
	}

	if c.Edge != "" && c.Edge != EdgeNone {
		if err := e.Attach(id, string(c.Edge), h); err != nil {
			return err
		}
	}

	return nil
}
