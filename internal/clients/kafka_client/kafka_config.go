package kafka_client

import "github.com/spacesedan/moodjournal/config"

type KafkaConfig struct {
	Broker       string
	GroupID      string
	EntriesTopic string
	ResultsTopic string
}

func GetKafkaConfig(s config.KafkaSettings) KafkaConfig {
	return KafkaConfig{
		Broker:       s.Broker,
		GroupID:      s.GroupID,
		EntriesTopic: s.EntriesTopic,
		ResultsTopic: s.ResultsTopic,
	}
}
