package types

const (
	DefaultMinPort = 10000
	DefaultMaxPort = 15000
)

// StubRunnerOptions configures resolution and the lifecycle of every
// stub bundle in a run.
type StubRunnerOptions struct {
	MinPort              int
	MaxPort              int
	RepositoryRoot       string
	StubsMode            StubsMode
	StubsClassifier      string
	FailOnNoStubs        bool
	DeleteStubsAfterTest bool
	StubsPerConsumer     bool
	ConsumerName         string
	MappingsOutputFolder string
	Username             string
	Password             string
	ClasspathRoots       []string
	Properties           map[string]string
	Coordinates          []StubCoordinate
	// StubPorts holds explicit ports keyed by StubCoordinate.Key.
	StubPorts map[string]int
}

func DefaultStubRunnerOptions() StubRunnerOptions {
	return StubRunnerOptions{
		MinPort:              DefaultMinPort,
		MaxPort:              DefaultMaxPort,
		StubsMode:            StubsModeClasspath,
		StubsClassifier:      DefaultClassifier,
		DeleteStubsAfterTest: true,
		Properties:           map[string]string{},
		StubPorts:            map[string]int{},
	}
}

// PortFor returns the explicitly configured port of a coordinate.
func (o StubRunnerOptions) PortFor(coordinate StubCoordinate) (int, bool) {
	port, ok := o.StubPorts[coordinate.Key()]
	return port, ok
}

func (o StubRunnerOptions) Classifier() string {
	if o.StubsClassifier == "" {
		return DefaultClassifier
	}
	return o.StubsClassifier
}
