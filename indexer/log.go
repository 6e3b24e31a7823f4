package indexer

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "indexer")
