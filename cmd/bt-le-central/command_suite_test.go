package main

import (
	"bytes"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blecentral/internal/testutils/mocks"
	"github.com/srg/blecentral/pkg/config"
)

// fakeCentral is a mocked Central service owned by one command run.
type fakeCentral struct {
	*mocks.MockService
	closes int
}

func (f *fakeCentral) Close() error {
	f.closes++
	return nil
}

// CommandTestSuite runs the real command tree against a mocked Central service.
type CommandTestSuite struct {
	suite.Suite

	originalFactory func(*logrus.Logger, *config.Config) (centralService, error)

	svc     *fakeCentral
	opened  int
	lastCfg *config.Config
	openErr error
}

func (s *CommandTestSuite) SetupTest() {
	s.originalFactory = newCentralService
	s.svc = &fakeCentral{MockService: &mocks.MockService{}}
	s.opened = 0
	s.lastCfg = nil
	s.openErr = nil

	newCentralService = func(_ *logrus.Logger, cfg *config.Config) (centralService, error) {
		s.opened++
		s.lastCfg = cfg
		if s.openErr != nil {
			return nil, s.openErr
		}
		return s.svc, nil
	}
}

func (s *CommandTestSuite) TearDownTest() {
	newCentralService = s.originalFactory
	s.svc.AssertExpectations(s.T())
}

// ExecuteCommand runs a fresh command tree with args and input,
// returns stdout, stderr and the command error.
func (s *CommandTestSuite) ExecuteCommand(input string, args ...string) (string, string, error) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	cmd := newRootCmd()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
