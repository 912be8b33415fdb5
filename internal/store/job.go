package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// JobStatus represents the lifecycle state of a processing job.
type JobStatus string

const (
	// JobStatusRunning means the pipeline is currently processing frames.
	JobStatusRunning JobStatus = "running"
	// JobStatusDone means the output was written with the original audio.
	JobStatusDone JobStatus = "done"
	// JobStatusNoAudio means processing succeeded but the audio remux was
	// skipped or failed, so the output is the silent video.
	JobStatusNoAudio JobStatus = "no_audio"
	// JobStatusFailed means the pipeline stopped with an error.
	JobStatusFailed JobStatus = "failed"
)

// Job represents a single processing run stored in the database.
type Job struct {
	ID              string
	InputPath       string
	OutputPath      string
	Status          JobStatus
	TotalFrames     int
	ProcessedFrames int
	Detections      int
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time // zero when the job is still running
}

// Finished reports whether the job has reached a terminal state.
func (j *Job) Finished() bool {
	return j.Status != JobStatusRunning
}

// JobRepository provides CRUD operations for jobs.
type JobRepository struct {
	db *sql.DB
}

// Jobs returns the job repository for this store.
func (s *Store) Jobs() *JobRepository {
	return &JobRepository{db: s.db}
}

// Create inserts a new job into the database.
func (r *JobRepository) Create(j *Job) error {
	if j.StartedAt.IsZero() {
		j.StartedAt = time.Now()
	}
	if j.Status == "" {
		j.Status = JobStatusRunning
	}

	_, err := r.db.Exec(
		`INSERT INTO jobs (id, input_path, output_path, status, total_frames, processed_frames, detections, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.InputPath, j.OutputPath, string(j.Status), j.TotalFrames, j.ProcessedFrames, j.Detections, j.Error, j.StartedAt,
	)
	return err
}

const jobColumns = `id, input_path, output_path, status, total_frames, processed_frames, detections, error, started_at, finished_at`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	j := &Job{}
	var status string
	var finished sql.NullTime

	err := row.Scan(&j.ID, &j.InputPath, &j.OutputPath, &status, &j.TotalFrames,
		&j.ProcessedFrames, &j.Detections, &j.Error, &j.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	j.Status = JobStatus(status)
	if finished.Valid {
		j.FinishedAt = finished.Time
	}
	return j, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(id string) (*Job, error) {
	row := r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

// List retrieves all jobs, most recent first.
func (r *JobRepository) List() ([]*Job, error) {
	rows, err := r.db.Query(`SELECT ` + jobColumns + ` FROM jobs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}

// UpdateProgress updates the frame and detection counters for a running job.
func (r *JobRepository) UpdateProgress(id string, totalFrames, processedFrames, detections int) error {
	result, err := r.db.Exec(
		`UPDATE jobs SET total_frames = ?, processed_frames = ?, detections = ? WHERE id = ?`,
		totalFrames, processedFrames, detections, id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Finish moves a job to a terminal state and records the outcome.
func (r *JobRepository) Finish(id string, status JobStatus, outputPath, errText string) error {
	result, err := r.db.Exec(
		`UPDATE jobs SET status = ?, output_path = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), outputPath, errText, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a job from the database.
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
