// Package setup holds the interactive terminal front door: a menu loop that
// dispatches to report or rebalance flows and the prompts those flows need.
package setup

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Action is a menu choice.
type Action string

const (
	ActionReport    Action = "report"
	ActionRebalance Action = "rebalance"
	ActionQuit      Action = "quit"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	okStyle = lipgloss.NewStyle().Foreground(special)
)

// RebalanceInput is everything the rebalance flow collects from the user.
type RebalanceInput struct {
	Mode       int
	WeightSpec string
	Injection  decimal.Decimal
}

// ShowHeader clears the screen and prints the banner.
func ShowHeader() {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Portfolio analyzer and rebalancer.\n"))
}

// ShowError prints an error without terminating the loop.
func ShowError(msg string) {
	fmt.Println(errorStyle.Render(msg))
}

// ShowOK prints a success line.
func ShowOK(msg string) {
	fmt.Println(okStyle.Render(msg))
}

// ChooseAction asks for the next action.
func ChooseAction() (Action, error) {
	var action string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What do you want to do?").
				Options(
					huh.NewOption("Build portfolio report", string(ActionReport)),
					huh.NewOption("Plan a rebalance", string(ActionRebalance)),
					huh.NewOption("Quit", string(ActionQuit)),
				).
				Value(&action),
		),
	).Run()
	if err != nil {
		return ActionQuit, err
	}
	return Action(action), nil
}

// PromptRebalance collects the mode, the target weight spec and, for the
// injection mode, the cash amount to add.
func PromptRebalance() (RebalanceInput, error) {
	var modeStr string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Rebalance mode").
				Options(
					huh.NewOption("Free: redistribute current total, sell anything", "1"),
					huh.NewOption("Inject: add cash, then redistribute", "2"),
					huh.NewOption("No-sell: only buy until weights match", "3"),
				).
				Value(&modeStr),
		),
	).Run()
	if err != nil {
		return RebalanceInput{}, err
	}

	spec, err := PromptWeightSpec()
	if err != nil {
		return RebalanceInput{}, err
	}

	input := RebalanceInput{WeightSpec: spec}
	fmt.Sscanf(modeStr, "%d", &input.Mode)

	if input.Mode == 2 {
		var amountStr string
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Cash to inject").
					Description("Amount in the reference currency (e.g. 10000)").
					Value(&amountStr).
					Validate(validatePositiveAmount),
			),
		).Run()
		if err != nil {
			return RebalanceInput{}, err
		}
		input.Injection, _ = decimal.NewFromString(amountStr)
	}

	return input, nil
}

// PromptWeightSpec asks for the target allocation string. It only checks the
// input is non-empty; semantic validation belongs to the normalizer, which the
// caller re-prompts through on a bad spec.
func PromptWeightSpec() (string, error) {
	var spec string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target weights").
				Description("Space-separated NAME-WEIGHT tokens (e.g. SBER-0.4 OFZ26238-0.6)").
				Value(&spec).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("weights cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	return spec, err
}

// ConfirmPlan shows the formatted plan and asks whether to keep it.
func ConfirmPlan(rendered string) (bool, error) {
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(rendered))

	var confirm bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Accept this plan?").
				Affirmative("Yes").
				Negative("No, back to menu").
				Value(&confirm),
		),
	).Run()
	return confirm, err
}

func validatePositiveAmount(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
