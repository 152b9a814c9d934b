package wake

// Indicator drives the advertising status LED.
type Indicator struct {
	out DigitalOutput
	pin int
	on  bool
}

func NewIndicator(out DigitalOutput, pin int) *Indicator {
	return &Indicator{out: out, pin: pin}
}

func (i *Indicator) Configure() error {
	return i.out.ConfigureOutput(i.pin)
}

func (i *Indicator) On() {
	i.out.WriteLevel(i.pin, true)
	i.on = true
}

func (i *Indicator) Off() {
	i.out.WriteLevel(i.pin, false)
	i.on = false
}

func (i *Indicator) IsOn() bool {
	return i.on
}
