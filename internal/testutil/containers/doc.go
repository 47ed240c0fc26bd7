// Package containers starts the backing services of the alerting service
// for integration tests:
//
//   - MySQL 8.0 for the gorm repositories
//   - Redis 7 for the shared dedup window
//   - Eclipse Mosquitto for the MQTT attendance trigger
//
// Containers are usually started once per package in TestMain:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background())
//	    if err != nil {
//	        panic(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Every file carries the "integration" build tag:
//
//	go test -tags=integration ./...
package containers
