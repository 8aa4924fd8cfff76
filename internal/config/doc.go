// Package config loads the imclient.json configuration used by the
// command line.
//
// # Configuration File Structure
//
//	{
//	  "account": 10001,
//	  "token": "secret",
//	  "server": {
//	    "address": "im.example.com:8000",
//	    "transport": "tcp"
//	  },
//	  "session": {
//	    "connectTimeout": "30s",
//	    "requestTimeout": "5s",
//	    "reconnectDelay": "5s",
//	    "heartbeat": "60s",
//	    "loadContacts": true
//	  },
//	  "history": {
//	    "pageSize": 20,
//	    "attempts": 2
//	  },
//	  "store": {
//	    "driver": "sqlite3",
//	    "dsn": "imclient.db"
//	  },
//	  "archive": {
//	    "bucket": "im-history",
//	    "prefix": "exports",
//	    "gzip": true
//	  },
//	  "debug": {
//	    "listen": "127.0.0.1:9090"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// The token may be left out of the file and supplied through the
// IMCLIENT_TOKEN environment variable instead.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Server:", cfg.Server.Address)
package config
