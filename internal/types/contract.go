package types

// ContractDescriptor is the compiled, format neutral view of a contract
// shipped in a stub bundle.
type ContractDescriptor struct {
	Name          string           `yaml:"name"`
	Label         string           `yaml:"label"`
	Ignored       bool             `yaml:"ignored"`
	Request       *ContractRequest `yaml:"request"`
	OutputMessage *OutputMessage   `yaml:"outputMessage"`
	Source        string           `yaml:"-"`
}

type ContractRequest struct {
	Method string `yaml:"method"`
	URL    string `yaml:"url"`
}

type OutputMessage struct {
	SentTo  string            `yaml:"sentTo"`
	Body    any               `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
}

// ContractFile is the on-disk layout of a YAML contract file, which may
// hold a single contract or a list of them.
type ContractFile struct {
	Contracts []ContractDescriptor `yaml:"contracts"`
}
