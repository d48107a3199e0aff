package db

import "docnest/pkg/config"

func configFor(user, password, host string, port int, name, sslMode string) config.DBConfig {
	return config.DBConfig{User: user, Password: password, Host: host, Port: port, Name: name, SSLMode: sslMode}
}
