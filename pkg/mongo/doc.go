// Package mongo provides MongoDB connection management for the control
// plane. The database handle it returns backs the document-oriented audit
// trail storage in pkg/audit.
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	db, err := mongo.ConnectDatabase(ctx, cfg, "controlplane")
//	if err != nil {
//		return err
//	}
//	trail := audit.NewMongoStorage(db)
package mongo
