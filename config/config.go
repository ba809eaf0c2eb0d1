package config

import (
	"errors"
	"os"

	"churn/session"

	"github.com/alexflint/go-arg"
)

const Program = "churn-predict"

type Args struct {
	session.SessionArgs `json:"session_._session_args"`

	Model         string  `arg:"-m,--model,env:CHURN_MODEL" default:"models/pipelineModel" help:"path to the trained model directory" json:"model,omitempty"`
	Input         string  `arg:"-i,--input,env:CHURN_INPUT" default:"data/BankChurners.csv" help:"path to the input CSV file" json:"input,omitempty"`
	Output        string  `arg:"-o,--output,env:CHURN_OUTPUT" default:"data/predictions" help:"path to the output directory for predictions" json:"output,omitempty"`
	IDCol         string  `arg:"--id-col,env:CHURN_ID_COL" default:"CLIENTNUM" help:"identifier column written for every positive row" json:"id_col,omitempty"`
	PredictionCol string  `arg:"--prediction-col,env:CHURN_PREDICTION_COL" default:"prediction" help:"prediction column produced by the model" json:"prediction_col,omitempty"`
	PositiveLabel float64 `arg:"--positive-label,env:CHURN_POSITIVE_LABEL" default:"1" help:"prediction value of the positive class" json:"positive_label,omitempty"`
	Header        bool    `arg:"--header,env:CHURN_OUTPUT_HEADER" help:"write a header row in the output" json:"header,omitempty"`
}

func (Args) Description() string {
	return "Credit Card Customers churn prediction"
}

func (Args) Epilogue() string {
	return `Examples:
    churn-predict  # Uses default paths
    churn-predict -m models/pipelineModel -i data/BankChurners.csv -o results/predictions
    churn-predict -i data/custom_data.csv -o results/custom_predictions`
}

// Config is the resolved configuration of one invocation. It is a plain
// value; copies can not affect each other.
type Config struct {
	ModelPath     string
	InputPath     string
	OutputPath    string
	Master        string
	AppName       string
	IDCol         string
	PredictionCol string
	PositiveLabel float64
	Header        bool

	session session.SessionArgs
}

// Config resolves parsed flags.
func (a Args) Config() Config {
	return Config{
		ModelPath:     a.Model,
		InputPath:     a.Input,
		OutputPath:    a.Output,
		Master:        a.Master,
		AppName:       a.AppName,
		IDCol:         a.IDCol,
		PredictionCol: a.PredictionCol,
		PositiveLabel: a.PositiveLabel,
		Header:        a.Header,
		session:       a.SessionArgs,
	}
}

// SessionArgs returns the arguments the compute session is acquired with.
func (c Config) SessionArgs() session.SessionArgs {
	args := c.session
	args.Master = c.Master
	args.AppName = c.AppName
	return args
}

func NewParser(args *Args) (*arg.Parser, error) {
	return arg.NewParser(arg.Config{Program: Program}, args)
}

func parse(argv []string) (Config, *arg.Parser, error) {
	var args Args
	p, err := NewParser(&args)
	if err != nil {
		return Config{}, nil, err
	}
	if err := p.Parse(argv); err != nil {
		return Config{}, p, err
	}
	return args.Config(), p, nil
}

// Parse resolves command line arguments (without the program name). It
// performs no I/O besides reading the environment for env fallbacks.
func Parse(argv []string) (Config, error) {
	cfg, _, err := parse(argv)
	return cfg, err
}

// MustParse is Parse for the binary. --help prints the help text and exits
// with 0, malformed arguments print the usage with the error and exit.
func MustParse(argv []string) Config {
	cfg, p, err := parse(argv)
	switch {
	case p == nil:
		panic(err)
	case errors.Is(err, arg.ErrHelp):
		p.WriteHelp(os.Stdout)
		os.Exit(0)
	case err != nil:
		p.Fail(err.Error())
	}
	return cfg
}
